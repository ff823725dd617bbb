package run

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/sitedata/internal/config"
	"github.com/John-Robertt/sitedata/internal/media"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	command    string
	phases     []string
	images     []int
	outcomes   map[string]media.Outcome
}

func (o *recordObserver) OnStart(command string, cfg config.Config, dryRun bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
	o.command = command
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnImageDone(idx, total int, id string, outcome media.Outcome, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.images = append(o.images, idx)
	if o.outcomes == nil {
		o.outcomes = map[string]media.Outcome{}
	}
	o.outcomes[id] = outcome
}

func TestSponsors_EmitsPhaseAndImageEvents(t *testing.T) {
	u := newUpstream(t, sponsorsPage)
	deps := sponsorDeps(t, u)
	obs := &recordObserver{}
	deps.Observer = obs

	_, err := Sponsors(context.Background(), testConfig(t), deps, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, obs.startCalls)
	assert.Equal(t, CommandSponsors, obs.command)
	assert.Equal(t, []string{StageFetch, StageFetch, StageMedia, StageSnapshot, StagePrune}, obs.phases)

	sort.Ints(obs.images)
	assert.Equal(t, []int{1, 2}, obs.images, "完成序号连续且不重复")
	assert.Equal(t, map[string]media.Outcome{"gh-42": media.OutcomeDownloaded, "oc-7": media.OutcomeDownloaded}, obs.outcomes)
}

func TestSponsors_NilObserverSameReport(t *testing.T) {
	u := newUpstream(t, sponsorsPage)
	cfg := testConfig(t)

	deps := sponsorDeps(t, u)
	deps.Observer = &recordObserver{}
	a, err := Sponsors(context.Background(), cfg, deps, Options{DryRun: true})
	require.NoError(t, err)

	deps.Observer = nil
	b, err := Sponsors(context.Background(), cfg, deps, Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, a, b, "observer 不应改变结果")
}

func TestSponsors_FailureStopsPhases(t *testing.T) {
	u := newUpstream(t, sponsorsPage)
	u.graphqlStatus.Store(500)
	deps := sponsorDeps(t, u)
	obs := &recordObserver{}
	deps.Observer = obs

	_, err := Sponsors(context.Background(), testConfig(t), deps, Options{})
	require.Error(t, err)
	assert.Empty(t, obs.phases)
	assert.Empty(t, obs.images)
}
