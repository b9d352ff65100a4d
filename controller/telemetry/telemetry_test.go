package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNet struct {
	mu        sync.Mutex
	connected bool
	connects  int
}

func (f *fakeNet) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeNet) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connects >= 2 {
		f.connected = true
	}
	return nil
}

type fakeSource struct {
	mode    int
	load    float64
	loadErr error
}

func (f *fakeSource) Mode() int { return f.mode }

func (f *fakeSource) Load() (float64, error) { return f.load, f.loadErr }

type sinkRequest struct {
	body string
	user string
	pass string
}

func newSink(status int, response string) (*httptest.Server, *[]sinkRequest) {
	var mu sync.Mutex
	reqs := &[]sinkRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, pass, _ := r.BasicAuth()
		mu.Lock()
		*reqs = append(*reqs, sinkRequest{body: string(body), user: user, pass: pass})
		mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	return srv, reqs
}

func newTestPublisher(client *InfluxClient, src Source) *Publisher {
	p := NewPublisher(client, nil, &fakeNet{connected: true}, src, NewMetrics(prometheus.NewRegistry()))
	p.Granularity = time.Millisecond
	return p
}

func TestLineProtocol(t *testing.T) {
	c := NewInfluxClient("http://example", "u", "p", "well-house", "pump-1")
	assert.Equal(t, "pump_load,location=well-house,sensor=pump-1 value=1.2e+03", c.Line(MeasurementLoad, 1199))
	assert.Equal(t, "pump_mode,location=well-house,sensor=pump-1 value=2", c.Line(MeasurementMode, 2))
}

func TestWriteSuccess(t *testing.T) {
	srv, reqs := newSink(http.StatusNoContent, "")
	defer srv.Close()

	c := NewInfluxClient(srv.URL, "user", "secret", "loc", "s1")
	require.NoError(t, c.Write(MeasurementMode, 1))

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "pump_mode,location=loc,sensor=s1 value=1", got.body)
	assert.Equal(t, "user", got.user)
	assert.Equal(t, "secret", got.pass)
}

func TestWriteRejectionOnNonEmptyBody(t *testing.T) {
	srv, _ := newSink(http.StatusOK, `{"error":"partial write"}`)
	defer srv.Close()

	c := NewInfluxClient(srv.URL, "", "", "loc", "s1")
	err := c.Write(MeasurementLoad, 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
}

func TestSendRejectionIsTerminal(t *testing.T) {
	srv, reqs := newSink(http.StatusOK, "nope")
	defer srv.Close()

	p := newTestPublisher(NewInfluxClient(srv.URL, "", "", "l", "s"), &fakeSource{})
	assert.False(t, p.Send(MeasurementLoad, 100))
	// One request despite the attempt budget.
	assert.Len(t, *reqs, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Dropped.WithLabelValues(MeasurementLoad, "rejected")))
}

func TestSendTransportErrorDropsPoint(t *testing.T) {
	srv, _ := newSink(http.StatusNoContent, "")
	srv.Close() // connection refused from here on

	p := newTestPublisher(NewInfluxClient(srv.URL, "", "", "l", "s"), &fakeSource{})
	assert.False(t, p.Send(MeasurementLoad, 100))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Dropped.WithLabelValues(MeasurementLoad, "transport")))
}

func TestPublishTickLoadErrorStillSendsMode(t *testing.T) {
	srv, reqs := newSink(http.StatusNoContent, "")
	defer srv.Close()

	src := &fakeSource{mode: 1, loadErr: errors.New("adc timeout")}
	p := newTestPublisher(NewInfluxClient(srv.URL, "", "", "l", "s"), src)
	p.publishTick()

	require.Len(t, *reqs, 1)
	assert.Contains(t, (*reqs)[0].body, "pump_mode")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Published.WithLabelValues(MeasurementMode)))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.metrics.Published.WithLabelValues(MeasurementLoad)))
}

func TestPublishTickSendsBothPoints(t *testing.T) {
	srv, reqs := newSink(http.StatusNoContent, "")
	defer srv.Close()

	src := &fakeSource{mode: 3, load: 1840}
	p := newTestPublisher(NewInfluxClient(srv.URL, "", "", "l", "s"), src)
	p.publishTick()

	require.Len(t, *reqs, 2)
	assert.Contains(t, (*reqs)[0].body, "pump_load")
	assert.Contains(t, (*reqs)[0].body, "value=1.8e+03")
	assert.Contains(t, (*reqs)[1].body, "pump_mode")
	assert.Equal(t, 3.0, testutil.ToFloat64(p.metrics.Mode))
}

func TestWaitConnectedRetriesUntilReachable(t *testing.T) {
	net := &fakeNet{}
	p := NewPublisher(NewInfluxClient("http://example", "", "", "l", "s"), nil, net, &fakeSource{}, NewMetrics(prometheus.NewRegistry()))
	p.Granularity = time.Millisecond
	p.ConnectWindow = 2

	done := make(chan struct{})
	go func() {
		p.waitConnected()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitConnected did not return")
	}
	assert.GreaterOrEqual(t, net.connects, 2)
}
