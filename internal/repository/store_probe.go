package repository

import (
	"context"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"

	"gorm.io/gorm"
)

// StoreStatus connectivity probe result
type StoreStatus struct {
	Connected   bool   `json:"connected"`
	TableExists bool   `json:"table_exists"`
	Dialect     string `json:"dialect"`
}

// StoreProbe reports whether the store is reachable
type StoreProbe interface {
	Probe(ctx context.Context) (StoreStatus, error)
}

// GormStoreProbe GORM implementation
type GormStoreProbe struct {
	db *gorm.DB
}

// NewStoreProbe creates the probe
func NewStoreProbe(db *gorm.DB) *GormStoreProbe {
	return &GormStoreProbe{db: db}
}

// Probe pings the pool and checks the payments table
func (p *GormStoreProbe) Probe(ctx context.Context) (StoreStatus, error) {
	status := StoreStatus{Dialect: dbDialectName(p.db)}
	if err := models.PingDB(ctx, p.db); err != nil {
		return status, err
	}
	status.Connected = true
	status.TableExists = p.db.WithContext(ctx).Migrator().HasTable(constants.PaymentsTableName)
	return status, nil
}
