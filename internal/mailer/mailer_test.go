package mailer

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchmenow/watchmenow-be/internal/config"
	"github.com/watchmenow/watchmenow-be/internal/models"
	"github.com/wneessen/go-mail"
)

func TestNew_SelectsSender(t *testing.T) {
	s, err := New(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, LogSender{}, s)

	s, err = New(&config.Config{SMTPHost: "smtp.test", SMTPPort: 2525, MailFrom: "a@b.c"})
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)
}

func TestBuildVerificationMessage(t *testing.T) {
	msg, err := BuildVerificationMessage("no-reply@watchmenow.com",
		models.User{Email: "ann@x.com", Name: "Ann"}, "https://watchmenow.com/api/verifyemail?id=abc")
	require.NoError(t, err)

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"ann@x.com"}, rcpts)

	assert.Equal(t, []string{verificationSubject}, msg.GetGenHeader(mail.HeaderSubject))
	assert.NotEmpty(t, msg.GetGenHeader(mail.HeaderDate))
	assert.NotEmpty(t, msg.GetGenHeader(mail.HeaderMessageID))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Hello Ann,")
	assert.Contains(t, buf.String(), "https://watchmenow.com/api/verifyemail")
}

func TestBuildVerificationMessage_InvalidAddress(t *testing.T) {
	_, err := BuildVerificationMessage("no-reply@watchmenow.com", models.User{Email: "not an address"}, "x")
	assert.Error(t, err)

	_, err = BuildVerificationMessage("", models.User{Email: "ann@x.com"}, "x")
	assert.Error(t, err)
}

// unusedPort returns a local port nothing listens on.
func unusedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return p
}

func TestSMTPSender_RelayDown(t *testing.T) {
	s, err := New(&config.Config{SMTPHost: "127.0.0.1", SMTPPort: unusedPort(t), MailFrom: "no-reply@watchmenow.com"})
	require.NoError(t, err)

	err = s.SendVerification(context.Background(), models.User{Email: "ann@x.com", Name: "Ann"}, "https://x/verify")
	assert.Error(t, err)
}

func TestSMTPSender_StopsOnCancelledContext(t *testing.T) {
	s, err := New(&config.Config{SMTPHost: "127.0.0.1", SMTPPort: unusedPort(t), MailFrom: "no-reply@watchmenow.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err = s.SendVerification(ctx, models.User{Email: "ann@x.com", Name: "Ann"}, "https://x/verify")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), smtpTimeout)
}
