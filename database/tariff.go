/*
Copyright 2024 Numcheck Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

func (d Datasource) CreateTariff(ctx context.Context, tariff model.Tariff) (model.Tariff, error) {
	tariff.TariffID = model.GenerateUUIDWithSuffix("trf")
	tariff.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO tariffs (tariff_id, name, price_per_item, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, tariff.TariffID, tariff.Name, tariff.PricePerItem, tariff.Active, tariff.CreatedAt)
	if err != nil {
		return model.Tariff{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create tariff", err)
	}

	if d.Cache != nil {
		if err := d.Cache.Delete(ctx, "tariffs:active"); err != nil {
			log.Printf("Failed to invalidate active tariff cache: %v", err)
		}
	}
	return tariff, nil
}

func (d Datasource) GetTariffByID(ctx context.Context, tariffID string) (*model.Tariff, error) {
	cacheKey := fmt.Sprintf("tariffs:%s", tariffID)

	tariff := &model.Tariff{}
	if d.Cache != nil {
		err := d.Cache.Get(ctx, cacheKey, tariff)
		if err == nil && tariff.TariffID != "" {
			return tariff, nil
		}
	}

	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, tariff_id, name, price_per_item, active, created_at
		FROM tariffs
		WHERE tariff_id = $1
	`, tariffID).Scan(&tariff.ID, &tariff.TariffID, &tariff.Name, &tariff.PricePerItem, &tariff.Active, &tariff.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Tariff with ID '%s' not found", tariffID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve tariff", err)
	}

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, cacheKey, tariff, 5*time.Minute); err != nil {
			log.Printf("Failed to cache tariff: %v", err)
		}
	}
	return tariff, nil
}

// GetActiveTariff returns the most recently created active tariff.
func (d Datasource) GetActiveTariff(ctx context.Context) (*model.Tariff, error) {
	const cacheKey = "tariffs:active"

	tariff := &model.Tariff{}
	if d.Cache != nil {
		err := d.Cache.Get(ctx, cacheKey, tariff)
		if err == nil && tariff.TariffID != "" {
			return tariff, nil
		}
	}

	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, tariff_id, name, price_per_item, active, created_at
		FROM tariffs
		WHERE active = true
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&tariff.ID, &tariff.TariffID, &tariff.Name, &tariff.PricePerItem, &tariff.Active, &tariff.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "No active tariff configured", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve active tariff", err)
	}

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, cacheKey, tariff, time.Minute); err != nil {
			log.Printf("Failed to cache active tariff: %v", err)
		}
	}
	return tariff, nil
}
