package lib

import (
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
)

func TestNewSchedulerReplacesSharedInstance(t *testing.T) {
	sched, err := gocron.NewScheduler()
	assert.Nil(t, err)
	defer sched.Shutdown()
	NewScheduler(sched)

	got, err := GetScheduler()
	assert.Nil(t, err)
	assert.Equal(t, sched, got)
}

func TestCreateCronJobRegistersJob(t *testing.T) {
	sched, err := gocron.NewScheduler()
	assert.Nil(t, err)
	defer sched.Shutdown()
	NewScheduler(sched)

	id, err := CreateCronJob(func() {}, 10*time.Minute)
	assert.Nil(t, err)
	assert.NotNil(t, id)
	assert.Len(t, sched.Jobs(), 1)
}
