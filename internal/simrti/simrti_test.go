package simrti

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hlaservices/internal/hla"
)

type callback struct {
	Kind   string
	Object hla.ObjectInstanceHandle
	Attrs  hla.AttributeHandleValueMap
	Class  hla.InteractionClassHandle
	Params hla.ParameterHandleValueMap
}

type recorder struct {
	mu    sync.Mutex
	calls []callback
}

func (r *recorder) DiscoverObjectInstance(object hla.ObjectInstanceHandle, _ hla.ObjectClassHandle, _ string) {
	r.add(callback{Kind: "discover", Object: object})
}

func (r *recorder) ReflectAttributeValues(object hla.ObjectInstanceHandle, values hla.AttributeHandleValueMap, _ hla.CallbackInfo) {
	r.add(callback{Kind: "reflect", Object: object, Attrs: values})
}

func (r *recorder) ReceiveInteraction(class hla.InteractionClassHandle, values hla.ParameterHandleValueMap, _ hla.CallbackInfo) {
	r.add(callback{Kind: "receive", Class: class, Params: values})
}

func (r *recorder) RemoveObjectInstance(object hla.ObjectInstanceHandle, _ hla.CallbackInfo) {
	r.add(callback{Kind: "remove", Object: object})
}

func (r *recorder) add(c callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Kind
	}
	return out
}

func (r *recorder) last() callback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

// observer joins a monitoring federate and subscribes to the MOM classes
// the service monitor uses.
func observer(t *testing.T, rti *RTI) (*Ambassador, *recorder) {
	t.Helper()
	rec := &recorder{}
	amb := rti.NewAmbassador()
	require.NoError(t, amb.Connect(rec, "crcAddress=localhost:8989"))
	err := amb.CreateFederationExecution("TheFederation", []string{"fom.xml"})
	if err != nil {
		require.ErrorIs(t, err, hla.ErrFederationExists)
	}
	_, err = amb.JoinFederationExecution("observer", "monitor", "TheFederation")
	require.NoError(t, err)
	return amb, rec
}

func subscribeFederates(t *testing.T, amb *Ambassador) {
	t.Helper()
	class, err := amb.GetObjectClassHandle(hla.FederateClass)
	require.NoError(t, err)
	name, err := amb.GetAttributeHandle(class, hla.FederateNameAttribute)
	require.NoError(t, err)
	handle, err := amb.GetAttributeHandle(class, hla.FederateHandleAttribute)
	require.NoError(t, err)
	require.NoError(t, amb.SubscribeObjectClassAttributes(class, []hla.AttributeHandle{name, handle}))
}

func armReporting(t *testing.T, amb *Ambassador, target hla.FederateHandle) {
	t.Helper()
	report, err := amb.GetInteractionClassHandle(hla.ReportServiceInvocation)
	require.NoError(t, err)
	require.NoError(t, amb.SubscribeInteractionClass(report))

	set, err := amb.GetInteractionClassHandle(hla.SetServiceReporting)
	require.NoError(t, err)
	fed, err := amb.GetParameterHandle(set, hla.FederateParameter)
	require.NoError(t, err)
	state, err := amb.GetParameterHandle(set, hla.ReportingStateParameter)
	require.NoError(t, err)
	require.NoError(t, amb.PublishInteractionClass(set))
	require.NoError(t, amb.SendInteraction(set, hla.ParameterHandleValueMap{
		fed:   target,
		state: hla.EncodeBoolean(true),
	}, nil))
}

func TestSubscribeDiscoversExistingFederates(t *testing.T) {
	rti := New()
	amb, rec := observer(t, rti)

	sut := rti.NewAmbassador()
	require.NoError(t, sut.Connect(nil, ""))
	handle, err := sut.JoinFederationExecution("SUT1", "sut", "TheFederation")
	require.NoError(t, err)

	assert.Empty(t, rec.kinds(), "nothing delivered before subscription")

	subscribeFederates(t, amb)

	// observer itself, then SUT1
	assert.Equal(t, []string{"discover", "reflect", "discover", "reflect"}, rec.kinds())
	last := rec.last()
	assert.Equal(t, sut.Object(), last.Object)
	assert.Equal(t, hla.MustEncodeUnicodeString("SUT1"), last.Attrs[federateNameAttr])
	assert.Equal(t, []byte(handle), last.Attrs[federateHandleAttr])
}

func TestJoinAfterSubscribeIsReflected(t *testing.T) {
	rti := New()
	amb, rec := observer(t, rti)
	subscribeFederates(t, amb)

	sut := rti.NewAmbassador()
	require.NoError(t, sut.Connect(nil, ""))
	_, err := sut.JoinFederationExecution("SUT1", "sut", "TheFederation")
	require.NoError(t, err)

	assert.Equal(t, []string{"discover", "reflect", "discover", "reflect"}, rec.kinds())
}

func TestPartialSubscriptionReflectsSubset(t *testing.T) {
	rti := New()
	amb, rec := observer(t, rti)

	class, err := amb.GetObjectClassHandle(hla.FederateClass)
	require.NoError(t, err)
	name, err := amb.GetAttributeHandle(class, hla.FederateNameAttribute)
	require.NoError(t, err)
	require.NoError(t, amb.SubscribeObjectClassAttributes(class, []hla.AttributeHandle{name}))

	last := rec.last()
	assert.Len(t, last.Attrs, 1)
	assert.Contains(t, last.Attrs, name)
}

func TestReportingRequiresArming(t *testing.T) {
	rti := New()
	amb, rec := observer(t, rti)

	sut := rti.NewAmbassador()
	require.NoError(t, sut.Connect(nil, ""))
	handle, err := sut.JoinFederationExecution("SUT1", "sut", "TheFederation")
	require.NoError(t, err)

	report, err := amb.GetInteractionClassHandle(hla.ReportServiceInvocation)
	require.NoError(t, err)
	require.NoError(t, amb.SubscribeInteractionClass(report))

	require.NoError(t, sut.Invoke("updateAttributeValues", true))
	assert.Empty(t, rec.kinds(), "reporting is off until requested")
	assert.False(t, rti.Reporting("TheFederation", handle))

	armReporting(t, amb, handle)
	assert.True(t, rti.Reporting("TheFederation", handle))

	require.NoError(t, sut.Invoke("updateAttributeValues", false))
	got := rec.last()
	assert.Equal(t, "receive", got.Kind)
	assert.Equal(t, reportClass, got.Class)
	assert.Equal(t, hla.MustEncodeUnicodeString("updateAttributeValues"), got.Params[reportServiceParam])
	assert.Equal(t, hla.EncodeBoolean(false), got.Params[reportSuccessParam])
	assert.Equal(t, []byte(handle), got.Params[reportFederateParam])

	sent := rti.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, hla.SetServiceReporting, sent[0].Class)
	assert.Equal(t, "observer", sent[0].Sender)
}

func TestSendRequiresPublish(t *testing.T) {
	rti := New()
	amb, _ := observer(t, rti)

	set, err := amb.GetInteractionClassHandle(hla.SetServiceReporting)
	require.NoError(t, err)
	err = amb.SendInteraction(set, hla.ParameterHandleValueMap{}, nil)
	assert.ErrorIs(t, err, hla.ErrNotPublished)
}

func TestResignReportsAndRemoves(t *testing.T) {
	rti := New()
	amb, rec := observer(t, rti)
	subscribeFederates(t, amb)

	sut := rti.NewAmbassador()
	require.NoError(t, sut.Connect(nil, ""))
	handle, err := sut.JoinFederationExecution("SUT1", "sut", "TheFederation")
	require.NoError(t, err)
	object := sut.Object()
	armReporting(t, amb, handle)

	require.NoError(t, sut.ResignFederationExecution())
	require.NoError(t, sut.Disconnect())

	kinds := rec.kinds()
	assert.Equal(t, []string{"receive", "remove"}, kinds[len(kinds)-2:])
	assert.Equal(t, object, rec.last().Object)
	assert.False(t, rti.Reporting("TheFederation", handle))

	_, joined := rti.Federation("TheFederation")
	assert.Equal(t, 1, joined)
}

func TestNameResolution(t *testing.T) {
	rti := New()
	amb, _ := observer(t, rti)

	_, err := amb.GetObjectClassHandle("HLAmanager.HLAnothing")
	assert.ErrorIs(t, err, hla.ErrNameNotFound)

	class, err := amb.GetInteractionClassHandle("HLAinteractionRoot." + hla.ReportServiceInvocation)
	require.NoError(t, err)
	name, err := amb.GetInteractionClassName(class)
	require.NoError(t, err)
	assert.Equal(t, "HLAinteractionRoot."+hla.ReportServiceInvocation, name)

	unqualified := New(WithUnqualifiedNames())
	amb2, _ := observer(t, unqualified)
	name, err = amb2.GetInteractionClassName(class)
	require.NoError(t, err)
	assert.Equal(t, hla.ReportServiceInvocation, name)
}

func TestNameResolutionRequiresJoin(t *testing.T) {
	amb := New().NewAmbassador()
	_, err := amb.GetObjectClassHandle(hla.FederateClass)
	assert.ErrorIs(t, err, hla.ErrNotConnected)

	require.NoError(t, amb.Connect(nil, ""))
	_, err = amb.GetObjectClassHandle(hla.FederateClass)
	assert.ErrorIs(t, err, hla.ErrNotExecutionMember)
}

func TestInjectFailure(t *testing.T) {
	rti := New()
	amb, _ := observer(t, rti)

	boom := errors.New("boom")
	require.NoError(t, rti.InjectFailure(OpGetAttributeHandle, boom))
	require.NoError(t, rti.InjectFailure(OpGetAttributeHandle, nil))

	_, err := amb.GetAttributeHandle(federateClass, hla.FederateNameAttribute)
	assert.ErrorIs(t, err, boom)
	_, err = amb.GetAttributeHandle(federateClass, hla.FederateNameAttribute)
	assert.ErrorIs(t, err, hla.ErrRTIInternal)
	_, err = amb.GetAttributeHandle(federateClass, hla.FederateNameAttribute)
	assert.NoError(t, err)

	assert.Error(t, rti.InjectFailure("tick", nil))
}

func TestFederationLifecycle(t *testing.T) {
	rti := New()
	amb := rti.NewAmbassador()
	require.NoError(t, amb.Connect(nil, ""))
	assert.ErrorIs(t, amb.Connect(nil, ""), hla.ErrAlreadyConnected)

	require.NoError(t, amb.CreateFederationExecution("F", []string{"a.xml", "b.xml"}))
	assert.ErrorIs(t, amb.CreateFederationExecution("F", nil), hla.ErrFederationExists)
	assert.Equal(t, []string{"a.xml", "b.xml"}, rti.FOMModules("F"))

	_, err := amb.JoinFederationExecution("x", "t", "G")
	assert.ErrorIs(t, err, hla.ErrFederationNotFound)
	_, err = amb.JoinFederationExecution("x", "t", "F")
	require.NoError(t, err)

	assert.ErrorIs(t, amb.DestroyFederationExecution("F"), hla.ErrFederatesJoined)
	assert.ErrorIs(t, amb.Disconnect(), hla.ErrStillJoined)

	require.NoError(t, amb.ResignFederationExecution())
	assert.ErrorIs(t, amb.ResignFederationExecution(), hla.ErrNotExecutionMember)
	require.NoError(t, amb.DestroyFederationExecution("F"))
	require.NoError(t, amb.Disconnect())

	exists, _ := rti.Federation("F")
	assert.False(t, exists)
}

func TestSetVersionReflects(t *testing.T) {
	rti := New(WithVersion("1.0"))
	amb, rec := observer(t, rti)

	class, err := amb.GetObjectClassHandle(hla.FederationClass)
	require.NoError(t, err)
	version, err := amb.GetAttributeHandle(class, hla.RTIVersionAttribute)
	require.NoError(t, err)
	require.NoError(t, amb.SubscribeObjectClassAttributes(class, []hla.AttributeHandle{version}))
	assert.Equal(t, hla.MustEncodeUnicodeString("1.0"), rec.last().Attrs[version])

	rti.SetVersion("2.0")
	assert.Equal(t, hla.MustEncodeUnicodeString("2.0"), rec.last().Attrs[version])
	assert.Equal(t, []string{"discover", "reflect", "reflect"}, rec.kinds())
}

func TestParseScript(t *testing.T) {
	script, err := ParseScript([]byte(`
steps:
  - join: SUT1
  - join: {name: SUT1, as: impostor}
  - report: {federate: SUT1, service: updateAttributeValues}
  - report: {federate: SUT1, service: deleteObjectInstance, success: false}
  - update: {federate: impostor, name: Other}
  - malformed: {federate: SUT1, field: service}
  - rti_version: "4.0"
  - fail: sendInteraction
  - wait: 1ms
  - resign: SUT1
`))
	require.NoError(t, err)
	require.Len(t, script.Steps, 10)

	assert.Equal(t, "SUT1", script.Steps[0].Join.Alias())
	assert.Equal(t, "impostor", script.Steps[1].Join.Alias())
	assert.Nil(t, script.Steps[2].Report.Success)
	assert.False(t, *script.Steps[3].Report.Success)

	kinds := make([]string, len(script.Steps))
	for i, s := range script.Steps {
		kinds[i] = s.Kind()
	}
	assert.Equal(t, []string{
		"join", "join", "report", "report", "update",
		"malformed", "rti_version", "fail", "wait", "resign",
	}, kinds)
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  string
	}{
		{"unknown field", "steps:\n  - jion: SUT1\n", "failed to parse YAML"},
		{"two actions", "steps:\n  - join: A\n    resign: A\n", "exactly one action"},
		{"no action", "steps:\n  - {}\n", "exactly one action"},
		{"bad field", "steps:\n  - malformed: {federate: A, field: tag}\n", "unknown field"},
		{"bad op", "steps:\n  - fail: tick\n", "unknown RTI operation"},
		{"bad wait", "steps:\n  - wait: soon\n", "wait"},
		{"report missing service", "steps:\n  - report: {federate: A}\n", "federate and service"},
		{"unknown join key", "steps:\n  - join: {name: A, alias: b}\n", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestRunnerDrivesFederates(t *testing.T) {
	rti := New()
	amb, rec := observer(t, rti)
	subscribeFederates(t, amb)

	settled := 0
	runner := NewRunner(rti, "TheFederation", nil)
	runner.Settle = func(context.Context) error {
		settled++
		return nil
	}

	script, err := ParseScript([]byte(`
steps:
  - join: SUT1
  - join: {name: SUT1, as: second}
  - update: {federate: second, name: Renamed}
  - malformed: {federate: SUT1, field: name}
  - resign: second
`))
	require.NoError(t, err)
	require.NoError(t, runner.Run(context.Background(), script.Steps))

	assert.Equal(t, 5, settled)
	assert.NotNil(t, runner.Federate("SUT1"))
	assert.Nil(t, runner.Federate("second"))
	assert.Equal(t, "remove", rec.last().Kind)

	err = runner.Run(context.Background(), []Step{{Resign: "ghost"}})
	assert.ErrorContains(t, err, `no scripted federate "ghost"`)

	err = runner.Run(context.Background(), []Step{{Join: &JoinStep{Name: "SUT1"}}})
	assert.ErrorContains(t, err, "already joined")
}

func TestRunnerStopsOnCancel(t *testing.T) {
	runner := NewRunner(New(), "TheFederation", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.Run(ctx, []Step{{Wait: "1h"}})
	assert.ErrorIs(t, err, context.Canceled)
}
