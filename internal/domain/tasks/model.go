package tasks

import (
	"fmt"
	"time"
)

// Estado define los estados del ciclo de vida de una tarea.
// Una tarea sin fila en el registro es implícitamente pendiente.
// @Enum pendiente, enviada, validada, rechazada
type Estado string

const (
	EstadoPendiente Estado = "pendiente"
	EstadoEnviada   Estado = "enviada"
	EstadoValidada  Estado = "validada"
	EstadoRechazada Estado = "rechazada"
)

func (e Estado) Valid() bool {
	switch e {
	case EstadoPendiente, EstadoEnviada, EstadoValidada, EstadoRechazada:
		return true
	}
	return false
}

// Key es el identificador compuesto de una tarea del plan:
// eje, objetivo, año, índice de mes e índice de tarea dentro del mes.
type Key struct {
	EjeID    string
	ObjID    string
	Year     int
	MesIdx   int
	TareaIdx int
}

// String serializa la clave en su forma estable "EJE-OBJ-YEAR-MES-TAREA".
func (k Key) String() string {
	return fmt.Sprintf("%s-%s-%d-%d-%d", k.EjeID, k.ObjID, k.Year, k.MesIdx, k.TareaIdx)
}

// Tarea representa el estado actual de una tarea rastreada.
// La identidad (key + componentes) es inmutable; solo mutan
// estado y actualizado.
type Tarea struct {
	Key      string
	EjeID    string
	ObjID    string
	Year     int
	MesIdx   int
	TareaIdx int

	Estado      Estado
	Actualizado time.Time
}

// ListFilter filtra el listado del registro de tareas.
// EjeIDs nil = todos los ejes.
type ListFilter struct {
	Year   int
	EjeIDs []string
}
