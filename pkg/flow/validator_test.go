package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAgainstSchema(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "valid minimal flow",
			doc: `
name: Minimal
nodes:
  - id: n1
    type: entry
`,
		},
		{
			name: "valid flow with sheets and connections",
			doc: `
name: Full
start: n1
sheets:
  - shortcut: player
    variables:
      - name: health
        block_type: number
        initial_value: 100
nodes:
  - id: n1
    type: entry
  - id: n2
    type: exit
connections:
  - from: n1
    to: n2
`,
		},
		{
			name:    "empty document",
			doc:     "",
			wantErr: true,
		},
		{
			name:    "missing nodes",
			doc:     "name: NoNodes",
			wantErr: true,
		},
		{
			name: "unknown node type",
			doc: `
name: Bad
nodes:
  - id: n1
    type: teleport
`,
			wantErr: true,
		},
		{
			name: "unknown block type",
			doc: `
name: Bad
sheets:
  - shortcut: player
    variables:
      - name: health
        block_type: integer
nodes:
  - id: n1
    type: entry
`,
			wantErr: true,
		},
		{
			name: "connection missing target",
			doc: `
name: Bad
nodes:
  - id: n1
    type: entry
connections:
  - from: n1
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgainstSchema([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAgainstSchemaAcceptsJSON(t *testing.T) {
	doc := `{"name":"JSON","nodes":[{"id":"n1","type":"entry"}]}`
	require.NoError(t, ValidateAgainstSchema([]byte(doc)))
}
