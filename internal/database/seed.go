package database

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/hospmaint/os-manager/internal/model"
	"github.com/hospmaint/os-manager/internal/perm"
	"github.com/hospmaint/os-manager/internal/repository"
	"github.com/hospmaint/os-manager/internal/utils"
)

// Seed creates the first-run accounts and one sample order so a fresh
// install is immediately usable. It only runs against an empty users
// table; any existing account disables it entirely.
func Seed(ctx context.Context, db *sql.DB, bcryptCost int, log *zap.Logger) error {
	users := repository.NewUserRepo(db)
	orders := repository.NewOrderRepo(db)

	n, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	defaults := []struct {
		username, email, fullName, password string
		role                                perm.Role
	}{
		{"admin", "admin@hospital.local", "Administrador", "admin123", perm.RoleAdmin},
		{"tecnico1", "tecnico1@hospital.local", "Técnico de Manutenção", "tecnico123", perm.RoleTech},
		{"recepcao1", "recepcao1@hospital.local", "Recepção", "recepcao123", perm.RoleReception},
	}

	var adminID uint64
	for _, d := range defaults {
		hash, err := utils.HashPassword(d.password, bcryptCost)
		if err != nil {
			return err
		}
		u := &model.User{
			Username:     d.username,
			Email:        d.email,
			FullName:     d.fullName,
			PasswordHash: hash,
			Role:         string(d.role),
			Active:       true,
		}
		if err := users.Create(ctx, u); err != nil {
			return err
		}
		if d.role == perm.RoleAdmin {
			adminID = u.ID
		}
		log.Info("seeded account", zap.String("username", d.username), zap.String("role", string(d.role)))
	}

	now := time.Now().UTC()
	sample := &model.ServiceOrder{
		OSNumber:            "OS-2024-0001",
		ClientName:          "UTI - Leito 05",
		EquipmentName:       "Monitor Multiparamétrico",
		EquipmentClass:      "Monitorização",
		SerialNumber:        "MP-88421",
		Accessories:         "Cabo ECG, sensor SpO2",
		OptionalDescription: "Equipamento apresentando falha intermitente no display",
		Priority:            model.PriorityHigh,
		CurrentStatus:       model.StatusReceived,
		CreatedByUserID:     &adminID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := orders.Insert(ctx, sample); err != nil {
		return err
	}
	log.Info("seeded sample order", zap.String("osNumber", sample.OSNumber))
	return nil
}
