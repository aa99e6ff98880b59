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
	"time"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

func (d Datasource) RecordNotificationEvent(ctx context.Context, event model.NotificationEvent) (model.NotificationEvent, error) {
	event.EventID = model.GenerateUUIDWithSuffix("evt")
	event.CreatedAt = time.Now()
	event.Processed = false

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO notification_events (event_id, event_type, recipient, headline, text, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.EventID, event.Type, event.Recipient, event.Headline, event.Text, event.Processed, event.CreatedAt)
	if err != nil {
		return model.NotificationEvent{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record notification event", err)
	}

	return event, nil
}

func (d Datasource) MarkNotificationProcessed(ctx context.Context, eventID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE notification_events SET processed = true WHERE event_id = $1
	`, eventID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark notification processed", err)
	}
	return nil
}

func (d Datasource) GetUnprocessedNotificationEvents(ctx context.Context, limit int) ([]model.NotificationEvent, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, event_id, event_type, recipient, headline, text, processed, created_at
		FROM notification_events
		WHERE processed = false
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve notification events", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []model.NotificationEvent
	for rows.Next() {
		event := model.NotificationEvent{}
		err = rows.Scan(&event.ID, &event.EventID, &event.Type, &event.Recipient, &event.Headline,
			&event.Text, &event.Processed, &event.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan notification event", err)
		}
		events = append(events, event)
	}

	return events, nil
}
