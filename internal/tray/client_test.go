package tray

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/tray/traytest"
)

func newTestClient(url string) *Client {
	return NewClient(url, time.Second, 2*time.Second, zap.NewNop())
}

func TestConnect_HandshakeCarriesCertificate(t *testing.T) {
	srv := traytest.NewServer()
	defer srv.Close()

	c := newTestClient(srv.URL())
	c.SetCertificatePromise(func(ctx context.Context) string { return "CERT" })

	require.NoError(t, c.Connect(context.Background(), ProbeOptions))
	defer c.Disconnect()

	assert.True(t, c.IsActive())
	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, CallHandshake, calls[0].Name)
	assert.Equal(t, "CERT", calls[0].Certificate)
}

func TestConnect_ReusesOpenConnection(t *testing.T) {
	srv := traytest.NewServer()
	defer srv.Close()

	c := newTestClient(srv.URL())
	require.NoError(t, c.Connect(context.Background(), ProbeOptions))
	require.NoError(t, c.Connect(context.Background(), ProbeOptions))
	defer c.Disconnect()

	assert.Equal(t, 1, srv.Connections())
}

func TestConnect_UnreachableIsConnectionError(t *testing.T) {
	srv := traytest.NewServer()
	url := srv.URL()
	srv.Close()

	c := newTestClient(url)
	start := time.Now()
	err := c.Connect(context.Background(), ConnectOptions{Retries: 2, Delay: 10 * time.Millisecond})

	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.False(t, c.IsActive())
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond, "two retry delays")
}

func TestConnect_RejectedHandshake(t *testing.T) {
	srv := traytest.NewServer()
	defer srv.Close()
	srv.Fail(CallHandshake, CodeUntrustedCertificate, "certificate not trusted")

	c := newTestClient(srv.URL())
	err := c.Connect(context.Background(), ProbeOptions)

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, CodeUntrustedCertificate, callErr.Code)
	assert.False(t, c.IsActive())
}

func TestPrint_SignsAndSendsRawBytes(t *testing.T) {
	srv := traytest.NewServer()
	defer srv.Close()

	c := newTestClient(srv.URL())
	var challenges []string
	c.SetSignaturePromise(func(ctx context.Context, challenge string) string {
		challenges = append(challenges, challenge)
		return "SIG"
	})

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, ProbeOptions))
	defer c.Disconnect()

	name, err := c.DefaultPrinter(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Epson TM-T88V", name)

	require.NoError(t, c.Print(ctx, PrintConfig{Printer: name}, []byte{27, 112, 48, 55, 121}))

	jobs := srv.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "Epson TM-T88V", jobs[0].Printer)
	assert.Equal(t, []byte{27, 112, 48, 55, 121}, jobs[0].Data)

	calls := srv.Calls()
	require.Len(t, calls, 3)
	assert.Empty(t, calls[0].Signature, "handshake is unsigned")
	assert.Equal(t, "SIG", calls[1].Signature)
	assert.Equal(t, "SIG", calls[2].Signature)
	require.Len(t, challenges, 2)
	assert.Contains(t, challenges[0], CallDefaultPrinter+"|")
}

func TestPrinters(t *testing.T) {
	srv := traytest.NewServer()
	defer srv.Close()
	srv.SetPrinters("Citizen CT-S2000", "Epson TM-T88V")

	c := newTestClient(srv.URL())
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, ProbeOptions))
	defer c.Disconnect()

	names, err := c.Printers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Citizen CT-S2000", "Epson TM-T88V"}, names)
}

func TestPrint_DaemonError(t *testing.T) {
	srv := traytest.NewServer()
	defer srv.Close()
	srv.Fail(CallPrint, CodePrinterNotFound, "no such printer")

	c := newTestClient(srv.URL())
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, ProbeOptions))
	defer c.Disconnect()

	err := c.Print(ctx, PrintConfig{Printer: "ghost"}, []byte{1})
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, CodePrinterNotFound, callErr.Code)
	assert.False(t, IsConnectionError(err))
}

func TestPrint_SlowAnswerIsTimeout(t *testing.T) {
	srv := traytest.NewServer()
	defer srv.Close()
	srv.Delay(CallPrint, 200*time.Millisecond)

	c := NewClient(srv.URL(), time.Second, 50*time.Millisecond, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, ProbeOptions))
	defer c.Disconnect()

	err := c.Print(ctx, PrintConfig{Printer: "Epson TM-T88V"}, []byte{1})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsConnectionError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, c.IsActive(), "connection survives a slow call")
}

func TestConnect_SlowHandshakeIsConnectionError(t *testing.T) {
	srv := traytest.NewServer()
	defer srv.Close()
	srv.Delay(CallHandshake, 200*time.Millisecond)

	c := NewClient(srv.URL(), time.Second, 50*time.Millisecond, zap.NewNop())
	err := c.Connect(context.Background(), ProbeOptions)

	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.False(t, c.IsActive())
}

func TestCallsWithoutConnection(t *testing.T) {
	c := newTestClient("ws://127.0.0.1:1")

	_, err := c.DefaultPrinter(context.Background())
	assert.True(t, IsConnectionError(err))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, c.Disconnect())
}

func TestPortFromURL(t *testing.T) {
	port, err := PortFromURL("ws://localhost:8182")
	require.NoError(t, err)
	assert.Equal(t, uint32(8182), port)

	port, err = PortFromURL("wss://localhost")
	require.NoError(t, err)
	assert.Equal(t, uint32(443), port)
}
