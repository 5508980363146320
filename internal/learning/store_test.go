package learning

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liora/internal/analyzer"
)

type countingPersister struct {
	loaded  Snapshot
	loadErr error
	saves   []int
	saveErr error
}

func (p *countingPersister) Load() (Snapshot, error) { return p.loaded, p.loadErr }

func (p *countingPersister) Save(s Snapshot) error {
	p.saves = append(p.saves, s.Learning.InteractionCount)
	return p.saveErr
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func TestRecordInteraction_FlushesEveryTenth(t *testing.T) {
	p := &countingPersister{loaded: DefaultSnapshot()}
	s := New(p)
	for i := 1; i <= 25; i++ {
		s.RecordInteraction("hi", "hello", "User: hi\n", "")
	}
	assert.Equal(t, []int{10, 20}, p.saves)
}

func TestRecordInteraction_SaveFailureIsSwallowed(t *testing.T) {
	p := &countingPersister{loaded: DefaultSnapshot(), saveErr: errors.New("disk full")}
	s := New(p)
	for i := 0; i < 10; i++ {
		s.RecordInteraction("hi", "hello", "", "")
	}
	assert.Equal(t, []int{10}, p.saves)
	assert.Equal(t, 10, s.Insights().TotalInteractions)
}

func TestNew_LoadFailureStartsFresh(t *testing.T) {
	s := New(&countingPersister{loadErr: errors.New("boom")})
	snap := s.Snapshot()
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, analyzer.StyleCasual, snap.Preferences.CommunicationStyle)
	assert.NotNil(t, snap.Learning.TopicFrequency)
}

func TestRecordInteraction_CountersStayConsistent(t *testing.T) {
	s := New(nil)
	r := rand.New(rand.NewSource(42))
	feedback := []string{"", "great!", "that is wrong", "meh", "perfect", "bad"}
	for i := 0; i < 300; i++ {
		s.RecordInteraction("tell me about code", "Code is fascinating", "User: code?\n", feedback[r.Intn(len(feedback))])
		if r.Intn(3) == 0 {
			s.ApplyFeedback("excellent", 0.5)
		}
		snap := s.Snapshot()
		require.LessOrEqual(t, snap.Learning.SuccessfulResponses, snap.Learning.InteractionCount)
		require.LessOrEqual(t, len(snap.Learning.SatisfactionScores), 100)
		require.LessOrEqual(t, len(snap.Patterns.EffectiveResponses), maxEffectiveResponses)
	}
}

func TestRecordInteraction_UpdatesTopicsStyleAndEngagement(t *testing.T) {
	s := New(nil, WithClock(fixedClock))
	history := "User: Could you please tell me about science research?\n"
	score := s.RecordInteraction("I love programming", "Programming is great and fascinating", history, "")

	assert.InDelta(t, 0.9, score, 1e-9)
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Learning.TopicFrequency[analyzer.TopicScience])
	assert.Equal(t, analyzer.StyleFormal, snap.Preferences.CommunicationStyle)
	assert.Equal(t, 1, snap.Learning.EngagementPatterns[analyzer.EngagementHigh])
	require.Len(t, snap.Patterns.EffectiveResponses, 1)
	assert.Equal(t, fixedClock(), snap.Patterns.EffectiveResponses[0].Timestamp)
	assert.Equal(t, []analyzer.Topic{analyzer.TopicScience}, snap.Preferences.PreferredTopics)
	assert.InDelta(t, 0.9, snap.Learning.ResponseEffectiveness["science"], 1e-9)
}

func TestRecordInteraction_LowScoreNotArchived(t *testing.T) {
	s := New(nil)
	s.RecordInteraction("hi", "ok", "", "")
	assert.Empty(t, s.Snapshot().Patterns.EffectiveResponses)
}

func TestApplyFeedback_Classification(t *testing.T) {
	s := New(nil)
	s.RecordInteraction("hi", "hello", "", "great answer")
	s.RecordInteraction("hi", "hello", "", "that's wrong")
	s.RecordInteraction("hi", "hello", "", "meh")

	snap := s.Snapshot()
	require.Len(t, snap.Learning.SatisfactionScores, 3)
	assert.Equal(t, 1.0, snap.Learning.SatisfactionScores[0])
	assert.Equal(t, 0.0, snap.Learning.SatisfactionScores[1])
	assert.InDelta(t, 0.5, snap.Learning.SatisfactionScores[2], 1e-9)
	assert.Equal(t, 1, snap.Learning.SuccessfulResponses)

	in := s.Insights()
	assert.InDelta(t, 1.0/3.0, in.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, in.AverageSatisfaction, 1e-9)
}

func TestApplyFeedback_EvictsOldestScores(t *testing.T) {
	s := New(nil)
	for i := 0; i < 150; i++ {
		s.RecordInteraction("hi", "hello", "", "")
		s.ApplyFeedback("terrible", 0)
	}
	s.ApplyFeedback("perfect", 0)
	scores := s.Snapshot().Learning.SatisfactionScores
	require.Len(t, scores, 100)
	assert.Equal(t, 1.0, scores[99])
}

func TestInsights_Stage(t *testing.T) {
	s := New(nil)
	for i := 0; i < 49; i++ {
		s.RecordInteraction("hi", "hello", "", "")
	}
	assert.Equal(t, StageBeginner, s.Insights().Stage)
	s.RecordInteraction("hi", "hello", "", "")
	assert.Equal(t, StageIntermediate, s.Insights().Stage)
	for i := 0; i < 150; i++ {
		s.RecordInteraction("hi", "hello", "", "")
	}
	assert.Equal(t, StageAdvanced, s.Insights().Stage)
}

func TestInsights_EmptyStore(t *testing.T) {
	in := New(nil).Insights()
	assert.Zero(t, in.TotalInteractions)
	assert.Zero(t, in.SuccessRate)
	assert.Zero(t, in.AverageSatisfaction)
	assert.Empty(t, in.TopTopics)
}

func TestPreferredTopics_OrderedByCountThenName(t *testing.T) {
	s := New(nil)
	s.RecordInteraction("x", "y", "music and science", "")
	s.RecordInteraction("x", "y", "music", "")
	s.RecordInteraction("x", "y", "work", "")
	got := s.PreferredTopics(2)
	assert.Equal(t, []analyzer.Topic{analyzer.TopicEntertainment, analyzer.TopicScience}, got)
}

func TestFileStore_RoundTripIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learning.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	s := New(fs, WithClock(fixedClock))
	s.RecordInteraction("I love programming", "Programming is great and fascinating", "User: hey, science!\n", "good")
	require.NoError(t, s.Flush())
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	reloaded := New(fs)
	require.NoError(t, reloaded.Close())
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 1, reloaded.Insights().TotalInteractions)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_MissingAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	missing, err := NewFileStore(filepath.Join(dir, "nested", "missing.json"))
	require.NoError(t, err)
	snap, err := missing.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSnapshot(), snap)

	corruptPath := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corruptPath, []byte("{not json"), 0o644))
	corrupt, err := NewFileStore(corruptPath)
	require.NoError(t, err)
	snap, err = corrupt.Load()
	assert.Error(t, err)
	assert.Equal(t, DefaultSnapshot(), snap)

	s := New(corrupt)
	assert.Zero(t, s.Insights().TotalInteractions)
}

func TestMigrate_UnversionedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	legacy := `{"learning":{"interaction_count":7,"successful_responses":9,"topic_frequency":{"science":3}}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	snap, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, 7, snap.Learning.InteractionCount)
	assert.Equal(t, 7, snap.Learning.SuccessfulResponses)
	assert.Equal(t, 3, snap.Learning.TopicFrequency[analyzer.TopicScience])
	assert.Equal(t, analyzer.StyleCasual, snap.Preferences.CommunicationStyle)
	assert.NotNil(t, snap.Patterns.EffectiveResponses)
}
