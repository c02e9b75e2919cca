package dialogue

import (
	"testing"
	"time"

	"protein-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_DiagnosisToChat(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cat := testCatalog()
	s := NewSession("s1", now)

	assert.Equal(t, StateDiagnosis, s.State())

	p := models.DefaultPersona()
	p.CurrentBrand = "BrandA"
	p.BaselineProductID = "BA001"
	require.NoError(t, s.UpdatePersona(p, cat, now))
	require.NoError(t, s.ConfirmPersona(cat, now.Add(time.Minute)))

	assert.Equal(t, StateChatIdle, s.State())
	assert.Equal(t, "BA001", s.Persona().BaselineProductID)
	assert.Equal(t, now.Add(time.Minute), s.LastActive())

	err := s.UpdatePersona(models.DefaultPersona(), cat, now)
	assert.ErrorIs(t, err, ErrPersonaLocked)
	err = s.ConfirmPersona(cat, now)
	assert.ErrorIs(t, err, ErrPersonaLocked)
	assert.Equal(t, "BA001", s.Persona().BaselineProductID)
}

func TestSession_UpdatePersonaValidates(t *testing.T) {
	cat := testCatalog()
	s := NewSession("s1", time.Now())

	p := models.DefaultPersona()
	p.CurrentBrand = "NoSuchBrand"
	err := s.UpdatePersona(p, cat, time.Now())
	assert.ErrorIs(t, err, models.ErrInvalidPersona)
	assert.Empty(t, s.Persona().CurrentBrand)

	p = models.DefaultPersona()
	p.CurrentBrand = "BrandB"
	p.BaselineProductID = "BA001"
	assert.ErrorIs(t, s.UpdatePersona(p, cat, time.Now()), models.ErrInvalidPersona)
}

func TestSession_PersonaIsCopied(t *testing.T) {
	s := NewSession("s1", time.Now())
	p := s.Persona()
	p.Priorities[models.PriorityTaste] = true
	assert.False(t, s.Persona().Priorities[models.PriorityTaste])
}

func TestSession_BeginRequiresChat(t *testing.T) {
	s := NewSession("s1", time.Now())
	_, accepted, err := s.begin("hello", time.Now())
	assert.ErrorIs(t, err, ErrSessionNotChatting)
	assert.False(t, accepted)
	assert.Empty(t, s.Turns())
}

func TestSession_BeginIsSingleFlight(t *testing.T) {
	s := chattingSession(t)
	now := time.Now()

	start, accepted, err := s.begin("first", now)
	require.NoError(t, err)
	require.True(t, accepted)
	assert.True(t, start.first)
	assert.Len(t, start.history, 1)
	assert.Equal(t, StateChatProcessing, s.State())

	_, accepted, err = s.begin("second", now)
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Len(t, s.Turns(), 1)

	sel := &models.SelectionResult{KeyMetric: models.MetricPrice, Candidates: []models.Product{{ID: "BB001"}}}
	s.complete(models.Turn{Text: "answer"}, sel, now)

	assert.Equal(t, StateChatIdle, s.State())
	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleUser, turns[0].Role)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
	require.NotNil(t, s.LastSelection())
	assert.Equal(t, models.MetricPrice, s.LastSelection().KeyMetric)

	start, accepted, err = s.begin("third", now)
	require.NoError(t, err)
	require.True(t, accepted)
	assert.False(t, start.first)
	assert.Len(t, start.history, 3)
}

func TestSession_CompleteWithoutSelectionKeepsPrevious(t *testing.T) {
	s := chattingSession(t)
	now := time.Now()

	_, _, _ = s.begin("a", now)
	s.complete(models.Turn{Text: "x"}, &models.SelectionResult{Candidates: []models.Product{{ID: "BB001"}}}, now)
	_, _, _ = s.begin("b", now)
	s.complete(models.Turn{Text: "y", Failed: true}, nil, now)

	require.NotNil(t, s.LastSelection())
	assert.Equal(t, "BB001", s.LastSelection().Candidates[0].ID)
}

func TestSession_View(t *testing.T) {
	s := chattingSession(t)
	now := time.Now()
	_, _, _ = s.begin("a", now)
	sel := &models.SelectionResult{
		KeyMetric:  models.MetricPrice,
		Baseline:   &models.Product{ID: "BA001"},
		Candidates: []models.Product{{ID: "BB001"}},
	}
	s.complete(models.Turn{Text: "x"}, sel, now)

	v := s.View()
	assert.Equal(t, "s1", v.ID)
	assert.Equal(t, StateChatIdle, v.State)
	assert.Len(t, v.Turns, 2)
	require.Len(t, v.ComparisonTable, 2)
	assert.True(t, v.ComparisonTable[0].IsBaseline)

	v.Turns[0].Text = "mutated"
	assert.Equal(t, "a", s.Turns()[0].Text)
}
