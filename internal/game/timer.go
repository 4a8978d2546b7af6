package game

import (
	"sync"
	"time"
)

// QuestionTimer is the cooperative per-question countdown. Arming it for a
// new question stops the previous one, and the expiry callback carries the
// question id it was armed for so a stale firing can be recognised after the
// active question has already moved on.
type QuestionTimer struct {
	mu         sync.Mutex
	timer      *time.Timer
	questionID string
}

func (t *QuestionTimer) Arm(questionID string, d time.Duration, expire func(questionID string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.questionID = questionID
	t.timer = time.AfterFunc(d, func() {
		expire(questionID)
	})
}

func (t *QuestionTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.questionID = ""
}

// ArmedFor reports which question the timer is currently counting down for.
func (t *QuestionTimer) ArmedFor() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.questionID
}
