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

// Package secrets retrieves credentials from Secret Manager and turns
// stored OAuth token material into token sources.
package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// Manager reads secret payloads from Secret Manager.
type Manager struct {
	client    *secretmanager.Client
	projectID string
}

// NewManager creates a Secret Manager accessor for one project.
func NewManager(ctx context.Context, projectID string) (*Manager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}
	return &Manager{client: client, projectID: projectID}, nil
}

// Get returns the latest version of the named secret.
func (m *Manager) Get(ctx context.Context, name string) ([]byte, error) {
	res, err := m.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", m.projectID, name),
	})
	if err != nil {
		return nil, fmt.Errorf("access secret %s: %w", name, err)
	}
	return res.GetPayload().GetData(), nil
}

// Close releases the underlying client.
func (m *Manager) Close() error {
	return m.client.Close()
}

// GmailTokenSource builds an OAuth2 token source from stored credential
// JSON (an authorized-user token file) scoped for mailbox modification.
func GmailTokenSource(ctx context.Context, credentialJSON []byte) (oauth2.TokenSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialJSON, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parse stored gmail credentials: %w", err)
	}
	return creds.TokenSource, nil
}
