// Package sessiondelivery manages delivery layer of client sessions: one TCP
// connection speaking a line-based command protocol.
//
// Every request is one line, every reply starts with OK or ERR. Balance changes of
// the logged-in user are pushed as EVENT lines at any time.
//
//	LOGIN <user> <secret>      SIGNUP <user> <secret>
//	BALANCE                    DEPOSIT <amount>
//	WITHDRAW <amount>          TRANSFER <to> <amount>
//	HISTORY                    PASSWORD <secret>
//	LOGOUT                     QUIT
package sessiondelivery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// Service provides service layer interface needed by session delivery layer.
type Service interface {
	Login(ctx context.Context, username, secret string) (*domain.Account, bool)
	CreateAccount(ctx context.Context, username, secret string) (*domain.Account, bool)
	Balance(ctx context.Context, username string) (int64, error)
	Deposit(ctx context.Context, username string, amount int64) (int64, error)
	Withdraw(ctx context.Context, username string, amount int64) (int64, error)
	Transfer(ctx context.Context, fromUser, toUser string, amount int64) (bool, error)
	ChangeCredential(ctx context.Context, username, secret string) error
	Transactions(ctx context.Context, username string) []domain.Transaction
	Subscribe(username string, l domain.BalanceListener)
	Unsubscribe(username string, l domain.BalanceListener)
}

// Sessions provides the active-session guard.
type Sessions interface {
	Acquire(username string) bool
	Release(username string)
}

// ErrSlowConsumer is returned to the notifier when a client is not reading its
// events fast enough; the event is dropped.
var ErrSlowConsumer = errors.New("client is not reading events")

// outBuffer is the number of lines queued per connection ahead of the socket.
const outBuffer = 32

// Handler facilitates session delivery layer logic.
type Handler struct {
	service      Service
	sessions     Sessions
	writeTimeout time.Duration
}

// NewHandler returns session handler.
func NewHandler(s Service, sess Sessions) *Handler {
	return &Handler{
		service:      s,
		sessions:     sess,
		writeTimeout: 5 * time.Second,
	}
}

// session is the state of one connection.
//
// Replies and events share one queue drained by a single writer, so an event
// raised by a command is written before that command's reply.
type session struct {
	h    *Handler
	conn net.Conn

	out  chan string
	stop chan struct{} // closed by Serve when the session ends
	done chan struct{} // closed by the writer when it exits

	username string
}

func newSession(h *Handler, conn net.Conn) *session {
	return &session{
		h:    h,
		conn: conn,
		out:  make(chan string, outBuffer),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// OnBalanceChanged queues an EVENT line for the client. It never blocks: when the
// queue is full the event is dropped with ErrSlowConsumer.
func (s *session) OnBalanceChanged(username string, balance int64, message string) error {
	select {
	case <-s.done:
		return net.ErrClosed
	default:
	}

	select {
	case s.out <- fmt.Sprintf("EVENT %d %s", balance, message):
		return nil
	default:
		return ErrSlowConsumer
	}
}

// reply queues line, waiting for room in the queue.
func (s *session) reply(line string) error {
	select {
	case s.out <- line:
		return nil
	case <-s.done:
		return net.ErrClosed
	}
}

// writeLoop writes queued lines until stop is closed, then flushes what is left.
// A failed write closes the connection.
func (s *session) writeLoop(l *zerolog.Logger) {
	defer close(s.done)

	for {
		select {
		case line := <-s.out:
			if err := s.write(line); err != nil {
				l.Info().Err(err).Msg("writing to client")
				_ = s.conn.Close()

				return
			}
		case <-s.stop:
			for {
				select {
				case line := <-s.out:
					if err := s.write(line); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *session) write(line string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.h.writeTimeout)); err != nil {
		return err
	}

	_, err := io.WriteString(s.conn, line+"\n")

	return err
}

// Serve runs the session until the client quits, the connection drops or ctx is done.
// It closes conn before returning.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) {
	l := zerolog.Ctx(ctx)

	s := newSession(h, conn)

	go s.writeLoop(l)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-s.stop:
		}
	}()

	defer func() {
		s.logout()

		close(s.stop)
		<-s.done

		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.Debug().Err(err).Msg("closing connection")
		}

		l.Info().Msg("session ended")
	}()

	if err := s.reply("OK connected to bank"); err != nil {
		return
	}

	scanner := bufio.NewScanner(conn)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		quit, reply := s.handle(ctx, strings.ToUpper(fields[0]), fields[1:])
		if err := s.reply(reply); err != nil {
			l.Info().Err(err).Msg("writing reply")
			return
		}

		if quit {
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		l.Info().Err(err).Msg("reading request")
	}
}

func (s *session) handle(ctx context.Context, cmd string, args []string) (quit bool, reply string) {
	switch cmd {
	case "QUIT":
		return true, "OK bye"
	case "LOGIN", "SIGNUP":
		return false, s.authenticate(ctx, cmd, args)
	}

	if s.username == "" {
		return false, "ERR login required"
	}

	switch cmd {
	case "LOGOUT":
		s.logout()
		return false, "OK logged out"
	case "BALANCE":
		balance, err := s.h.service.Balance(ctx, s.username)
		return false, balanceReply(balance, err)
	case "DEPOSIT":
		amount, err := parseAmount(args, 1)
		if err != nil {
			return false, errReply(err)
		}

		balance, err := s.h.service.Deposit(ctx, s.username, amount)

		return false, balanceReply(balance, err)
	case "WITHDRAW":
		amount, err := parseAmount(args, 1)
		if err != nil {
			return false, errReply(err)
		}

		balance, err := s.h.service.Withdraw(ctx, s.username, amount)

		return false, balanceReply(balance, err)
	case "TRANSFER":
		return false, s.transfer(ctx, args)
	case "HISTORY":
		return false, s.history(ctx)
	case "PASSWORD":
		if len(args) != 1 {
			return false, errReply(errorspkg.ErrInvalidArgument)
		}

		if err := s.h.service.ChangeCredential(ctx, s.username, args[0]); err != nil {
			return false, errReply(err)
		}

		return false, "OK password changed"
	}

	return false, "ERR unknown command " + cmd
}

func (s *session) authenticate(ctx context.Context, cmd string, args []string) string {
	l := zerolog.Ctx(ctx)

	if s.username != "" {
		return "ERR already logged in as " + s.username
	}

	if len(args) != 2 {
		return errReply(errorspkg.ErrInvalidArgument)
	}

	username, secret := args[0], args[1]

	var ok bool
	if cmd == "SIGNUP" {
		_, ok = s.h.service.CreateAccount(ctx, username, secret)
		if !ok {
			return "ERR account creation failed"
		}
	} else {
		_, ok = s.h.service.Login(ctx, username, secret)
		if !ok {
			return errReply(domain.ErrInvalidCredentials)
		}
	}

	if !s.h.sessions.Acquire(username) {
		return errReply(domain.ErrAlreadyLoggedIn)
	}

	s.username = username
	s.h.service.Subscribe(username, s)

	l.Info().Str("username", username).Msg("session authenticated")

	return "OK welcome " + username
}

func (s *session) logout() {
	if s.username == "" {
		return
	}

	s.h.service.Unsubscribe(s.username, s)
	s.h.sessions.Release(s.username)
	s.username = ""
}

func (s *session) transfer(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return errReply(errorspkg.ErrInvalidArgument)
	}

	amount, err := parseAmount(args[1:], 1)
	if err != nil {
		return errReply(err)
	}

	ok, err := s.h.service.Transfer(ctx, s.username, args[0], amount)
	if err != nil {
		return errReply(err)
	}

	if !ok {
		return "ERR transfer refused"
	}

	balance, err := s.h.service.Balance(ctx, s.username)

	return balanceReply(balance, err)
}

func (s *session) history(ctx context.Context) string {
	txs := s.h.service.Transactions(ctx, s.username)

	var sb strings.Builder

	fmt.Fprintf(&sb, "OK %d", len(txs))

	for _, tx := range txs {
		fmt.Fprintf(&sb, "\nTX %s %s %s %s %s %d",
			tx.ID, tx.Type, tx.Time.Format(time.RFC3339), orDash(tx.From), orDash(tx.To), tx.Amount)
	}

	return sb.String()
}

func parseAmount(args []string, want int) (int64, error) {
	if len(args) != want {
		return 0, errorspkg.ErrInvalidArgument
	}

	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		return 0, errorspkg.ErrInvalidArgument
	}

	return amount, nil
}

func balanceReply(balance int64, err error) string {
	if err != nil {
		return errReply(err)
	}

	return fmt.Sprintf("OK %d", balance)
}

func errReply(err error) string {
	return "ERR " + err.Error()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
