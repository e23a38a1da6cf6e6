package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleFile(ids ...string) string {
	s := "form:\n  fields:\n    - name: a\nprocess:\n  globalConditions:\n"
	for _, id := range ids {
		s += fmt.Sprintf("    - id: %s\n      condition: \"true\"\n      effect: hidden\n      target: {type: field, fieldNames: [a]}\n", id)
	}
	return s
}

func setupWatched(t *testing.T, content string) (string, *formrules.RuleVault) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	b, err := Load(path)
	require.NoError(t, err)
	v, err := b.Process.Vault()
	require.NoError(t, err)
	return path, v
}

func globalIDs(v *formrules.RuleVault) []string {
	var ids []string
	for _, r := range v.Snapshot().Global {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestNewWatcher_Errors(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{})
	assert.Error(t, err)

	_, err = NewWatcher(WatcherConfig{Path: "form.yaml"})
	assert.Error(t, err)

	v, _ := formrules.NewRuleVault(nil, nil)
	_, err = NewWatcher(WatcherConfig{Path: filepath.Join(t.TempDir(), "missing", "form.yaml"), Vault: v})
	assert.Error(t, err, "directory does not exist")
}

func TestWatcher_Reload(t *testing.T) {
	path, v := setupWatched(t, ruleFile("r1"))
	w, err := NewWatcher(WatcherConfig{Path: path, Vault: v, Logger: log.Discard()})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(ruleFile("r2", "r3")), 0o644))
	b, err := w.Reload()
	require.NoError(t, err)
	assert.Len(t, b.Process.GlobalConditions, 2)
	assert.Equal(t, []string{"r2", "r3"}, globalIDs(v))

	// rules that do not validate keep the previous set
	require.NoError(t, os.WriteFile(path, []byte(ruleFile("r4", "r4")), 0o644))
	_, err = w.Reload()
	require.Error(t, err)
	assert.Equal(t, []string{"r2", "r3"}, globalIDs(v))

	require.NoError(t, os.WriteFile(path, []byte("form: [\n"), 0o644))
	_, err = w.Reload()
	require.Error(t, err)
	assert.Equal(t, []string{"r2", "r3"}, globalIDs(v))
}

func TestWatcher_FileChange(t *testing.T) {
	path, v := setupWatched(t, ruleFile("r1"))

	reloaded := make(chan error, 10)
	w, err := NewWatcher(WatcherConfig{
		Path:          path,
		Vault:         v,
		Logger:        log.Discard(),
		DebounceDelay: 20 * time.Millisecond,
		OnReload:      func(_ *Bundle, err error) { reloaded <- err },
	})
	require.NoError(t, err)
	defer w.Close()

	// other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(ruleFile("r9")), 0o644))

	// a save can arrive as several events; wait for the final content
	require.Eventually(t, func() bool {
		return slices.Equal(globalIDs(v), []string{"r9"})
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, reloaded)
}

func TestWatcher_CloseStopsReloads(t *testing.T) {
	path, v := setupWatched(t, ruleFile("r1"))
	w, err := NewWatcher(WatcherConfig{Path: path, Vault: v, Logger: log.Discard(), DebounceDelay: time.Hour})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(ruleFile("r2")), 0o644))
	require.NoError(t, w.Close())
	assert.Equal(t, []string{"r1"}, globalIDs(v))
}
