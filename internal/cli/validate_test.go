package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/apibridge/pkg/descriptor"
	"github.com/harun/apibridge/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	t.Run("lists registered APIs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "apis.json")
		s := store.New(path)
		_, err := s.Add(descriptor.Descriptor{
			Name:        "list_users",
			Description: "List users",
			BaseURL:     "https://api.example.com",
			Path:        "/users",
			Method:      descriptor.MethodGet,
		})
		require.NoError(t, err)
		_, err = s.Add(descriptor.Descriptor{
			Name:        "get_user",
			Description: "Fetch one user",
			BaseURL:     "https://api.example.com",
			Path:        "/users/{id}",
			Method:      descriptor.MethodGet,
			Parameters: []descriptor.Parameter{
				{Name: "id", In: descriptor.InPath, Required: true},
			},
		})
		require.NoError(t, err)
		_, err = s.SetStatus("get_user", descriptor.StatusDisabled)
		require.NoError(t, err)

		out, _, err := execute(t, "", "validate", path)
		require.NoError(t, err)

		assert.Contains(t, out, "APIs: 2 (1 enabled, 1 disabled)")
		assert.Contains(t, out, "list_users")
		assert.Contains(t, out, "https://api.example.com/users/{id}")
		assert.Contains(t, out, "disabled")
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "apis.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"apis": [{"name": ""}]}`), 0644))

		_, _, err := execute(t, "", "validate", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is invalid")
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := execute(t, "", "validate", filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot read store file")
	})

	t.Run("reserved name", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "apis.json")
		doc := `[{"name": "add_api", "description": "shadow", "base_url": "https://x.example.com", "path": "/", "method": "GET"}]`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

		_, _, err := execute(t, "", "validate", path)
		require.Error(t, err)
	})
}
