// Copyright (c) 2026 The Mailvault Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package warehouse

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/mailvault/ingestion/internal/models"
)

// BigQueryInserter adapts a BigQuery table inserter to the Inserter
// interface. Table schema provisioning lives outside this service.
type BigQueryInserter struct {
	inserter *bigquery.Inserter
	table    string
}

// NewBigQueryInserter targets dataset.table in the given client's project.
func NewBigQueryInserter(client *bigquery.Client, dataset, table string) *BigQueryInserter {
	return &BigQueryInserter{
		inserter: client.Dataset(dataset).Table(table).Inserter(),
		table:    dataset + "." + table,
	}
}

// Insert streams one record into the table.
func (b *BigQueryInserter) Insert(ctx context.Context, rec *models.EmailRecord) error {
	row, err := RowFromRecord(rec)
	if err != nil {
		return &InsertError{MessageID: rec.MessageID, Err: err}
	}

	if err := b.inserter.Put(ctx, row); err != nil {
		var multi bigquery.PutMultiError
		if errors.As(err, &multi) {
			// Streaming inserts report row-level errors; surface the first.
			err = fmt.Errorf("%s: %d row error(s): %v", b.table, len(multi), multi[0].Errors)
		}
		return &InsertError{MessageID: rec.MessageID, Err: err}
	}
	return nil
}
