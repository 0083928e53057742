// Package snapshotrepo manages repository layer of account and ledger snapshots.
package snapshotrepo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

const separator = ";"

// RepoFile stores snapshots as semicolon-delimited text, one entity per line:
//
//	accounts: username;secret;balance
//	ledger:   id;type;time;from;to;amount
type RepoFile struct {
	accountsPath string
	ledgerPath   string
}

// NewRepoFile returns snapshot RepoFile backed by the two given files.
func NewRepoFile(accountsPath, ledgerPath string) *RepoFile {
	return &RepoFile{
		accountsPath: accountsPath,
		ledgerPath:   ledgerPath,
	}
}

// SaveAccounts replaces the accounts file with records.
//
// A record holding domain.ReservedChars fails the whole save with
// ErrInvalidArgument and the previous file is kept.
func (r *RepoFile) SaveAccounts(ctx context.Context, records []domain.AccountRecord) error {
	l := zerolog.Ctx(ctx)

	return writeLines(r.accountsPath, func(w *bufio.Writer) error {
		for _, rec := range records {
			if !safeFields(rec.Username, rec.Secret) {
				l.Error().Str("username", rec.Username).Msg("account holds reserved characters")
				return fmt.Errorf("account %q: %w", rec.Username, errorspkg.ErrInvalidArgument)
			}

			line := strings.Join([]string{
				rec.Username,
				rec.Secret,
				strconv.FormatInt(rec.Balance, 10),
			}, separator)

			if _, err := w.WriteString(line + "\n"); err != nil {
				return err
			}
		}

		return nil
	})
}

// LoadAccounts reads the accounts file. A missing file yields no records and
// malformed lines are skipped.
func (r *RepoFile) LoadAccounts(ctx context.Context) ([]domain.AccountRecord, error) {
	l := zerolog.Ctx(ctx)

	var records []domain.AccountRecord

	err := readLines(r.accountsPath, func(n int, line string) {
		parts := strings.Split(line, separator)
		if len(parts) != 3 {
			l.Warn().Int("line", n).Msg("skipping malformed account line")
			return
		}

		balance, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			l.Warn().Int("line", n).Err(err).Msg("skipping malformed account balance")
			return
		}

		records = append(records, domain.AccountRecord{
			Username: parts[0],
			Secret:   parts[1],
			Balance:  balance,
		})
	})

	return records, err
}

// SaveTransactions replaces the ledger file with txs in order. Reserved
// characters fail the save as in SaveAccounts.
func (r *RepoFile) SaveTransactions(ctx context.Context, txs []domain.Transaction) error {
	l := zerolog.Ctx(ctx)

	return writeLines(r.ledgerPath, func(w *bufio.Writer) error {
		for _, tx := range txs {
			if !safeFields(tx.ID, tx.From, tx.To) {
				l.Error().Str("id", tx.ID).Msg("transaction holds reserved characters")
				return fmt.Errorf("transaction %q: %w", tx.ID, errorspkg.ErrInvalidArgument)
			}

			line := strings.Join([]string{
				tx.ID,
				string(tx.Type),
				tx.Time.UTC().Format(time.RFC3339Nano),
				tx.From,
				tx.To,
				strconv.FormatInt(tx.Amount, 10),
			}, separator)

			if _, err := w.WriteString(line + "\n"); err != nil {
				return err
			}
		}

		return nil
	})
}

// LoadTransactions reads the ledger file in order. A missing file yields no
// transactions and malformed lines are skipped.
func (r *RepoFile) LoadTransactions(ctx context.Context) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	var txs []domain.Transaction

	err := readLines(r.ledgerPath, func(n int, line string) {
		parts := strings.Split(line, separator)
		if len(parts) != 6 {
			l.Warn().Int("line", n).Msg("skipping malformed ledger line")
			return
		}

		at, err := time.Parse(time.RFC3339Nano, parts[2])
		if err != nil {
			l.Warn().Int("line", n).Err(err).Msg("skipping malformed ledger time")
			return
		}

		amount, err := strconv.ParseInt(parts[5], 10, 64)
		if err != nil {
			l.Warn().Int("line", n).Err(err).Msg("skipping malformed ledger amount")
			return
		}

		txs = append(txs, domain.Transaction{
			ID:     parts[0],
			Type:   domain.TransactionType(parts[1]),
			Time:   at,
			From:   parts[3],
			To:     parts[4],
			Amount: amount,
		})
	})

	return txs, err
}

func safeFields(fields ...string) bool {
	for _, f := range fields {
		if strings.ContainsAny(f, domain.ReservedChars) {
			return false
		}
	}

	return true
}

// writeLines writes to a temporary file next to path and renames it over path.
func writeLines(path string, fn func(w *bufio.Writer) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	w := bufio.NewWriter(f)

	if err = fn(w); err != nil {
		return err
	}

	if err = w.Flush(); err != nil {
		return err
	}

	if err = f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), path)
}

func readLines(path string, fn func(n int, line string)) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}
	defer f.Close()

	reader := bufio.NewReader(f)

	for n := 1; ; n++ {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		if line != "" {
			fn(n, line)
		}

		if err == io.EOF {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
}
