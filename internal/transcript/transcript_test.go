package transcript

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/fairbox/internal/display"
	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/game"
	"github.com/lox/fairbox/internal/peer"
	"github.com/lox/fairbox/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSession(t *testing.T, rounds int) *Recorder {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC))

	p := &peer.Script{}
	for i := 0; i < rounds; i++ {
		p.Ints = append(p.Ints, i%3, (i+1)%2)
		p.Slots = append(p.Slots, i%3)
		p.Switches = append(p.Switches, i%2 == 0)
	}
	host := fair.New("Morty", p, display.Discard{}, fair.WithClock(clock))
	t.Cleanup(func() { _ = host.Close() })
	strat, err := strategy.NewUniform(3, host)
	require.NoError(t, err)

	rec := NewRecorder(host.Name(), strat.Name(), 3, clock)
	s, err := game.NewSession(game.Config{Boxes: 3}, host, strat, p, nil, game.WithObserver(rec))
	require.NoError(t, err)
	for i := 0; i < rounds; i++ {
		_, err := s.PlayRound(context.Background())
		require.NoError(t, err)
	}
	return rec
}

func TestRecorderCollectsRounds(t *testing.T) {
	rec := recordSession(t, 3)
	tr := rec.Transcript()

	id, err := uuid.Parse(tr.Session)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, "Morty", tr.Host)
	assert.Equal(t, "uniform", tr.Strategy)
	assert.Equal(t, time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC), tr.Started)

	require.Len(t, tr.Rounds, 3)
	require.Len(t, tr.Exchanges, 6)
	for i, round := range tr.Rounds {
		assert.Equal(t, i+1, round.Number)
		assert.Equal(t, []int{2*i + 1, 2*i + 2}, round.Exchanges)
	}
	assert.Empty(t, Verify(tr))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rec := recordSession(t, 2)
	path := FileName(filepath.Join(t.TempDir(), "transcripts"), rec.Session())
	require.NoError(t, rec.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "[[exchange]]")
	assert.Contains(t, text, "[[round]]")
	assert.True(t, strings.HasSuffix(path, ".toml"))

	loaded, err := Load(path)
	require.NoError(t, err)
	want := rec.Transcript()
	assert.Equal(t, want.Session, loaded.Session)
	assert.True(t, want.Started.Equal(loaded.Started))
	require.Len(t, loaded.Exchanges, len(want.Exchanges))
	for i := range want.Exchanges {
		assert.Equal(t, want.Exchanges[i].Key, loaded.Exchanges[i].Key)
		assert.Equal(t, want.Exchanges[i].Digest, loaded.Exchanges[i].Digest)
	}
	assert.Equal(t, want.Rounds, loaded.Rounds)
	assert.Empty(t, Verify(loaded))
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 9\nsession = \"x\"\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "version 9")

	require.NoError(t, os.WriteFile(path, []byte("version = 1\nbogus = true\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "unknown key")
}

func TestVerifyDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Transcript)
		want   string
	}{
		{"committed value", func(tr *Transcript) {
			tr.Exchanges[0].Committed = (tr.Exchanges[0].Committed + 1) % 3
		}, "does not match"},
		{"final value", func(tr *Transcript) {
			tr.Exchanges[1].Final = (tr.Exchanges[1].Final + 1) % 2
		}, "final value"},
		{"key", func(tr *Transcript) { tr.Exchanges[0].Key = "zz" }, "exchange 1"},
		{"prize", func(tr *Transcript) {
			tr.Rounds[0].Prize = (tr.Rounds[0].Prize + 1) % 3
		}, "prize"},
		{"outcome", func(tr *Transcript) { tr.Rounds[0].Won = !tr.Rounds[0].Won }, "recorded won"},
		{"missing exchange", func(tr *Transcript) { tr.Rounds[0].Exchanges = []int{99} }, "missing"},
		{"duplicate exchange", func(tr *Transcript) {
			tr.Exchanges = append(tr.Exchanges, tr.Exchanges[0])
		}, "twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := recordSession(t, 1).Transcript()
			tt.mutate(tr)
			errs := Verify(tr)
			require.NotEmpty(t, errs)
			var msgs []string
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			assert.Contains(t, strings.Join(msgs, "\n"), tt.want)
		})
	}
}

func TestTranscriptSnapshotIsACopy(t *testing.T) {
	rec := recordSession(t, 1)
	a := rec.Transcript()
	a.Rounds[0].Eliminated[0] = 42
	a.Exchanges[0].Final = 42
	b := rec.Transcript()
	assert.NotEqual(t, 42, b.Rounds[0].Eliminated[0])
	assert.NotEqual(t, 42, b.Exchanges[0].Final)
}
