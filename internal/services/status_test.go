package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusTracker_StartsIdle(t *testing.T) {
	st := NewStatusTracker(time.Second)
	assert.Equal(t, StatusIdle, st.Current().State)
}

func TestStatusTracker_AutoClears(t *testing.T) {
	st := NewStatusTracker(20 * time.Millisecond)
	st.Set(StatusSuccess, "✓ Saved to Hillside")

	cur := st.Current()
	assert.Equal(t, StatusSuccess, cur.State)
	assert.Equal(t, "✓ Saved to Hillside", cur.Message)

	assert.Eventually(t, func() bool {
		return st.Current().State == StatusIdle
	}, time.Second, 5*time.Millisecond)
}

func TestStatusTracker_UploadingDoesNotClear(t *testing.T) {
	st := NewStatusTracker(10 * time.Millisecond)
	st.Set(StatusUploading, "Uploading...")
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, StatusUploading, st.Current().State)
}

func TestStatusTracker_OlderTimerKeepsNewerStatus(t *testing.T) {
	st := NewStatusTracker(30 * time.Millisecond)
	st.Set(StatusError, "Upload failed: boom")
	time.Sleep(10 * time.Millisecond)
	st.Set(StatusUploading, "Uploading...")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StatusUploading, st.Current().State)
}
