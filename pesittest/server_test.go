package pesittest

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pesit-e/pesitengine/internal/driver"
	"github.com/pesit-e/pesitengine/internal/session"
	"github.com/pesit-e/pesitengine/internal/storage"
	syncpkg "github.com/pesit-e/pesitengine/internal/sync"
)

// startServer runs a real pesitd server on an ephemeral port and
// returns its address. One enrolled partner: CLIENT1 / s3cret.
func startServer(t *testing.T) string {
	t.Helper()

	lookup := func(id string) (session.Partner, bool) {
		if id != "CLIENT1" {
			return session.Partner{}, false
		}
		return session.Partner{Password: []byte("s3cret"), MaxSessions: 8, Enabled: true}, true
	}

	srv := driver.NewServer(driver.ServerConfig{
		ListenAddr:     "127.0.0.1:0",
		ServerID:       "SRV1",
		Lookup:         lookup,
		Store:          storage.NewLocalStore(t.TempDir()),
		Restarts:       syncpkg.NewMemoryRestartStore(),
		MaxEntitySize:  4096,
		SyncIntervalKB: 64,
	}, zap.NewNop().Sugar())

	if err := srv.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	go srv.Start()
	t.Cleanup(func() { srv.Stop(2 * time.Second) })

	return srv.Addr().String()
}
