package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/provider"
)

type probeProvider struct {
	id      string
	working bool
	canWork bool
	probed  bool
}

func (p *probeProvider) Info() models.ProviderInfo {
	return models.ProviderInfo{ID: p.id, Name: p.id, UsesThreading: true}
}
func (p *probeProvider) LoadChapter(context.Context, provider.ChapterRequest, string, provider.ProgressFn) error {
	return nil
}
func (p *probeProvider) SupportsSearch() bool { return false }
func (p *probeProvider) Search(context.Context, provider.ChapterRequest, string) ([]models.SearchResult, error) {
	return nil, nil
}
func (p *probeProvider) IsWorking(provider.ChapterRequest) bool {
	p.probed = true
	return p.working
}
func (p *probeProvider) CanWork() bool    { return p.canWork }
func (p *probeProvider) LogoPath() string { return "" }
func (p *probeProvider) Close() error     { return nil }

func TestLivenessDefaultsToWorking(t *testing.T) {
	l := NewLiveness()
	assert.True(t, l.Working("never-swept"))
}

func TestSweepRecordsVerdicts(t *testing.T) {
	up := &probeProvider{id: "up", working: true, canWork: true}
	down := &probeProvider{id: "down", working: false, canWork: true}
	nodriver := &probeProvider{id: "nodriver", working: true, canWork: false}

	l := NewLiveness()
	l.Sweep([]provider.Provider{up, down, nodriver})

	assert.True(t, l.Working("up"))
	assert.False(t, l.Working("down"))
	assert.False(t, l.Working("nodriver"))
	// CanWork==false short-circuits the network probe.
	assert.False(t, nodriver.probed)
}

func TestSweepUpdatesOnRecovery(t *testing.T) {
	p := &probeProvider{id: "flaky", working: false, canWork: true}
	l := NewLiveness()

	l.Sweep([]provider.Provider{p})
	assert.False(t, l.Working("flaky"))

	p.working = true
	l.Sweep([]provider.Provider{p})
	assert.True(t, l.Working("flaky"))
}
