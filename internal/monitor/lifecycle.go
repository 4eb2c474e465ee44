package monitor

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/roach88/hlaservices/internal/observation"
)

// Federation lifecycle services seeded without an explicit report.
var (
	DiscoveryServices = []string{"connect", "createFederationExecution", "joinFederationExecution"}
	TeardownServices  = []string{"resignFederationExecution", "destroyFederationExecution", "disconnect"}
)

// Lifecycle states of the tracked SUT.
const (
	StateSearching  = "searching"
	StateFollowing  = "following"
	StateUnreported = "unreported"
	StateDeparted   = "departed"
)

const (
	eventFollow      = "follow"
	eventLoseReports = "lose_reporting"
	eventDepart      = "depart"
	enterFollowing   = "enter_" + StateFollowing
	enterDeparted    = "enter_" + StateDeparted
)

// lifecycle overlays the observation table for services that are implied by
// the SUT being present or gone rather than individually reported.
//
//	searching --follow--> following --depart--> departed
//	searching --lose_reporting--> unreported --depart--> departed
//
// Discovery services are seeded only on follow, that is when arming
// succeeded. Teardown services are seeded on depart from either state.
type lifecycle struct {
	fsm *fsm.FSM
}

// newLifecycle wires state transitions to mark, which records each seeded
// service with SourceLifecycle.
func newLifecycle(mark func(service string, source observation.Source)) *lifecycle {
	l := &lifecycle{}
	l.fsm = fsm.NewFSM(
		StateSearching,
		fsm.Events{
			{Name: eventFollow, Src: []string{StateSearching}, Dst: StateFollowing},
			{Name: eventLoseReports, Src: []string{StateSearching}, Dst: StateUnreported},
			{Name: eventDepart, Src: []string{StateFollowing, StateUnreported}, Dst: StateDeparted},
		},
		fsm.Callbacks{
			enterFollowing: func(_ context.Context, _ *fsm.Event) {
				for _, s := range DiscoveryServices {
					mark(s, observation.SourceLifecycle)
				}
			},
			enterDeparted: func(_ context.Context, _ *fsm.Event) {
				for _, s := range TeardownServices {
					mark(s, observation.SourceLifecycle)
				}
			},
		},
	)
	return l
}

// Discovered moves out of searching once the SUT is identified.
func (l *lifecycle) Discovered(ctx context.Context, armed bool) error {
	event := eventLoseReports
	if armed {
		event = eventFollow
	}
	return l.fire(ctx, event)
}

// Removed records the SUT's HLAfederate object going away.
func (l *lifecycle) Removed(ctx context.Context) error {
	return l.fire(ctx, eventDepart)
}

// Current returns the lifecycle state.
func (l *lifecycle) Current() string {
	return l.fsm.Current()
}

func (l *lifecycle) fire(ctx context.Context, event string) error {
	if !l.fsm.Can(event) {
		return fmt.Errorf("lifecycle: %s not allowed in state %s", event, l.fsm.Current())
	}
	return l.fsm.Event(ctx, event)
}
