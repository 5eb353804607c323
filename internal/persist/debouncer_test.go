package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/inovacc/gitsafe/internal/config"
	"github.com/inovacc/gitsafe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	writes []*model.Config
	err    error
}

func (r *recorder) save(cfg *model.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writes = append(r.writes, cfg)

	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.writes)
}

func (r *recorder) last() *model.Config {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writes[len(r.writes)-1]
}

func snapshot(port int) *model.Config {
	cfg := model.DefaultConfig()
	cfg.Server.Port = port

	return &cfg
}

func TestBurstProducesSingleWrite(t *testing.T) {
	rec := &recorder{}
	d := New(rec.save, WithQuietPeriod(50*time.Millisecond))

	defer d.Close()

	for i := 1; i <= 10; i++ {
		d.RequestPersist(snapshot(9000 + i))
	}

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// no second write appears once the quiet period elapsed
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 9010, rec.last().Server.Port)
}

func TestRequestPersistDoesNotBlockOnSlowSave(t *testing.T) {
	release := make(chan struct{})

	var (
		mu    sync.Mutex
		ports []int
	)

	save := func(cfg *model.Config) error {
		<-release

		mu.Lock()
		defer mu.Unlock()

		ports = append(ports, cfg.Server.Port)

		return nil
	}

	d := New(save, WithQuietPeriod(5*time.Millisecond))

	d.RequestPersist(snapshot(1))
	time.Sleep(50 * time.Millisecond) // first save is now stuck

	returned := make(chan struct{})
	go func() {
		for i := 2; i <= 500; i++ {
			d.RequestPersist(snapshot(i))
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("RequestPersist blocked behind a slow save")
	}

	close(release)
	d.Close()

	mu.Lock()
	defer mu.Unlock()

	require.NotEmpty(t, ports)
	assert.Equal(t, 500, ports[len(ports)-1])
}

func TestSeparateBurstsWriteSeparately(t *testing.T) {
	rec := &recorder{}
	d := New(rec.save, WithQuietPeriod(30*time.Millisecond))

	defer d.Close()

	d.RequestPersist(snapshot(1))
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	d.RequestPersist(snapshot(2))
	d.RequestPersist(snapshot(3))
	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, rec.last().Server.Port)
}

func TestCloseFlushesPending(t *testing.T) {
	rec := &recorder{}
	d := New(rec.save, WithQuietPeriod(time.Hour))

	d.RequestPersist(snapshot(1))
	d.RequestPersist(snapshot(2))
	d.Close()

	require.Equal(t, 1, rec.count())
	assert.Equal(t, 2, rec.last().Server.Port)

	// closing twice and requesting after close are harmless
	d.Close()
	d.RequestPersist(snapshot(3))
	assert.Equal(t, 1, rec.count())
}

func TestCloseWithoutPending(t *testing.T) {
	rec := &recorder{}
	d := New(rec.save)
	d.Close()

	assert.Zero(t, rec.count())
}

func TestSaveErrorIsLogged(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	d := New(rec.save, WithQuietPeriod(10*time.Millisecond))

	d.RequestPersist(snapshot(1))
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()

	d.RequestPersist(snapshot(2))
	d.Close()
	assert.Equal(t, 2, rec.count())
}

func TestWritesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	d := New(func(cfg *model.Config) error { return config.Save(path, cfg) }, WithQuietPeriod(10*time.Millisecond))

	for i := range 5 {
		cfg := snapshot(8080)
		cfg.Repositories = append(cfg.Repositories, model.Repository{ID: fmt.Sprintf("r%d", i), Enabled: true})
		d.RequestPersist(cfg)
	}

	d.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := config.Parse(data)
	require.NoError(t, err)
	require.Len(t, loaded.Repositories, 1)
	assert.Equal(t, "r4", loaded.Repositories[0].ID)
}
