package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readySession(t *testing.T, kind TaskKind) *Session {
	t.Helper()
	s := New("u1")
	require.NoError(t, s.ChooseTask(kind))
	token, err := s.SubmitText("draft")
	require.NoError(t, err)
	require.NoError(t, s.CompleteGeneration(token, "polished"))
	return s
}

func TestChooseTask(t *testing.T) {
	t.Run("create asks for a topic", func(t *testing.T) {
		s := New("u1")
		require.NoError(t, s.ChooseTask(TaskCreate))
		assert.Equal(t, StateAwaitingTopic, s.State)
		assert.Equal(t, TaskCreate, s.TaskKind)
	})

	t.Run("other kinds ask for a body", func(t *testing.T) {
		for _, kind := range []TaskKind{TaskImprove, TaskFixErrors, TaskMakeEngaging, TaskShorten, TaskExpand, TaskAnalyze} {
			s := New("u1")
			require.NoError(t, s.ChooseTask(kind))
			assert.Equal(t, StateAwaitingBody, s.State, kind)
		}
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		s := New("u1")
		assert.Error(t, s.ChooseTask("poem"))
		assert.Equal(t, StateIdle, s.State)
	})

	t.Run("from result ready starts over", func(t *testing.T) {
		s := readySession(t, TaskImprove)
		require.NoError(t, s.ChooseTask(TaskShorten))
		assert.Equal(t, StateAwaitingBody, s.State)
		assert.Empty(t, s.ProcessedText)
		assert.Empty(t, s.OriginalText)
	})

	t.Run("not while processing", func(t *testing.T) {
		s := New("u1")
		require.NoError(t, s.ChooseTask(TaskImprove))
		_, err := s.SubmitText("x")
		require.NoError(t, err)
		assert.ErrorIs(t, s.ChooseTask(TaskShorten), ErrIllegalTransition)
		assert.Equal(t, StateProcessing, s.State)
	})
}

func TestIdleOnlyAcceptsTaskChoice(t *testing.T) {
	for _, ev := range []Event{
		EventSubmitText, EventQuotaDenied, EventGenerationSucceeded, EventProcessAgain,
		EventEditResult, EventSubmitEdit, EventBeginPublish, EventDestinationAccepted,
		EventConfirmPublish, EventPublishFinished,
	} {
		s := New("u1")
		assert.False(t, s.Can(ev), ev)
	}

	s := New("u1")
	assert.True(t, s.Can(EventChooseTask))
	assert.True(t, s.Can(EventChooseCreate))
	assert.True(t, s.Can(EventCancel))

	_, err := s.SubmitText("hello")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.OriginalText)
}

func TestGenerationLifecycle(t *testing.T) {
	t.Run("success keeps result", func(t *testing.T) {
		s := readySession(t, TaskImprove)
		assert.Equal(t, StateResultReady, s.State)
		assert.Equal(t, "draft", s.OriginalText)
		assert.Equal(t, "polished", s.ProcessedText)
		assert.Equal(t, TaskImprove, s.TaskKind)
	})

	t.Run("analysis resets", func(t *testing.T) {
		s := New("u1")
		require.NoError(t, s.ChooseTask(TaskAnalyze))
		token, err := s.SubmitText("text")
		require.NoError(t, err)
		require.NoError(t, s.CompleteGeneration(token, "report"))
		assert.Equal(t, StateIdle, s.State)
		assert.Empty(t, s.TaskKind)
		assert.Empty(t, s.ProcessedText)
	})

	t.Run("failure resets", func(t *testing.T) {
		s := New("u1")
		require.NoError(t, s.ChooseTask(TaskExpand))
		token, err := s.SubmitText("text")
		require.NoError(t, err)
		require.NoError(t, s.FailGeneration(token))
		assert.Equal(t, StateIdle, s.State)
		assert.Empty(t, s.OriginalText)
	})

	t.Run("quota denial returns to the input step", func(t *testing.T) {
		s := New("u1")
		require.NoError(t, s.ChooseTask(TaskCreate))
		token, err := s.SubmitText("topic")
		require.NoError(t, err)
		require.NoError(t, s.QuotaDenied(token))
		assert.Equal(t, StateAwaitingTopic, s.State)
		assert.Equal(t, TaskCreate, s.TaskKind)
	})

	t.Run("quota denial on process again returns to result", func(t *testing.T) {
		s := readySession(t, TaskImprove)
		token, err := s.ProcessAgain()
		require.NoError(t, err)
		require.NoError(t, s.QuotaDenied(token))
		assert.Equal(t, StateResultReady, s.State)
		assert.Equal(t, "polished", s.ProcessedText)
	})

	t.Run("process again reuses input", func(t *testing.T) {
		s := readySession(t, TaskImprove)
		token, err := s.ProcessAgain()
		require.NoError(t, err)
		assert.Equal(t, StateProcessing, s.State)
		require.NoError(t, s.CompleteGeneration(token, "polished again"))
		assert.Equal(t, "polished again", s.ProcessedText)
		assert.Equal(t, "draft", s.OriginalText)
	})
}

func TestStaleCompletionAfterCancel(t *testing.T) {
	s := New("u1")
	require.NoError(t, s.ChooseTask(TaskImprove))
	token, err := s.SubmitText("text")
	require.NoError(t, err)

	s.Reset()
	assert.Equal(t, StateIdle, s.State)

	assert.ErrorIs(t, s.CompleteGeneration(token, "late"), ErrStale)
	assert.ErrorIs(t, s.FailGeneration(token), ErrStale)
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.ProcessedText)
}

func TestStaleCompletionAfterRestart(t *testing.T) {
	s := New("u1")
	require.NoError(t, s.ChooseTask(TaskImprove))
	old, err := s.SubmitText("first")
	require.NoError(t, err)

	s.Reset()
	require.NoError(t, s.ChooseTask(TaskImprove))
	current, err := s.SubmitText("second")
	require.NoError(t, err)

	assert.ErrorIs(t, s.CompleteGeneration(old, "for first"), ErrStale)
	require.NoError(t, s.CompleteGeneration(current, "for second"))
	assert.Equal(t, "for second", s.ProcessedText)
}

func TestManualEdit(t *testing.T) {
	s := readySession(t, TaskImprove)
	require.NoError(t, s.BeginEdit())
	assert.Equal(t, StateAwaitingManualEdit, s.State)
	require.NoError(t, s.SubmitEdit("hand written"))
	assert.Equal(t, StateResultReady, s.State)
	assert.Equal(t, "hand written", s.ProcessedText)
}

func TestPublishFlow(t *testing.T) {
	t.Run("requires a result", func(t *testing.T) {
		s := New("u1")
		assert.ErrorIs(t, s.BeginPublish(), ErrNothingToPublish)
		assert.Equal(t, StateIdle, s.State)
	})

	t.Run("destination then confirm then reset", func(t *testing.T) {
		s := readySession(t, TaskImprove)
		require.NoError(t, s.BeginPublish())
		assert.Equal(t, StateAwaitingPublishDestination, s.State)

		require.NoError(t, s.AcceptDestination("-100123", Destination{Title: "News", Kind: "channel"}))
		assert.Equal(t, StateConfirmingPublish, s.State)
		assert.Equal(t, "-100123", s.DestinationID)

		token, err := s.StartPublishing()
		require.NoError(t, err)
		assert.Equal(t, StatePublishing, s.State)

		require.NoError(t, s.FinishPublishing(token))
		assert.Equal(t, StateIdle, s.State)
		assert.Empty(t, s.DestinationID)
		assert.Nil(t, s.Destination)
		assert.Empty(t, s.ProcessedText)
	})

	t.Run("confirm without destination step is illegal", func(t *testing.T) {
		s := readySession(t, TaskImprove)
		_, err := s.StartPublishing()
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})
}

func TestResetClearsEverything(t *testing.T) {
	s := readySession(t, TaskImprove)
	require.NoError(t, s.BeginPublish())
	require.NoError(t, s.AcceptDestination("@news", Destination{Title: "News", Handle: "news"}))
	gen := s.Generation

	s.Reset()
	assert.Equal(t, Session{UserID: "u1", State: StateIdle, Generation: gen + 1}, *s)
}

func TestClone(t *testing.T) {
	s := readySession(t, TaskImprove)
	require.NoError(t, s.BeginPublish())
	require.NoError(t, s.AcceptDestination("1", Destination{Title: "A"}))

	c := s.Clone()
	c.Destination.Title = "B"
	assert.Equal(t, "A", s.Destination.Title)
}
