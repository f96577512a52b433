package reports

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Dashboard(ctx context.Context, year int) (Dashboard, error) {
	var d Dashboard
	var err error

	if d.Resumen, err = s.repo.ResumenPorEstado(ctx, year); err != nil {
		return Dashboard{}, err
	}
	if d.PorEje, err = s.repo.ResumenPorEje(ctx, year); err != nil {
		return Dashboard{}, err
	}
	if d.Pendientes, err = s.repo.PendientesAuditoria(ctx, year); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
