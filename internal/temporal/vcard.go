package temporal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-lifegrid/internal/config"
)

var (
	// ErrNoBirthday is returned when no card in the stream carries a full birth date.
	ErrNoBirthday = errors.New(config.ErrVCardNoBirthday)
	errDateParse  = errors.New(config.ErrDateParse)
)

// ImportVCard seeds the profile from the first card that has a birthday with
// a known year. The display name comes from FN, falling back to N.
func (s *Store) ImportVCard(r io.Reader) error {
	decoder := vcard.NewDecoder(r)
	for {
		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			return ErrNoBirthday
		}
		if err != nil {
			return fmt.Errorf("%s: %w", config.ErrVCardParse, err)
		}

		bday := card.Get(config.VCardBDAY)
		if bday == nil || bday.Value == "" {
			continue
		}
		birth, err := parseDate(bday.Value)
		if err != nil {
			slog.Debug(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompTemporal,
				config.LogKeyValue, bday.Value)
			continue
		}

		if err := s.SetBirthData(birth.Day(), birth.Month(), birth.Year()); err != nil {
			return err
		}
		if name := cardName(card); name != "" {
			s.SetUserName(name)
		}
		return nil
	}
}

// cardName applies the FN > N strategy. Structured N values are joined
// given name first.
func cardName(card vcard.Card) string {
	if fn := card.Get(config.VCardFN); fn != nil && strings.TrimSpace(fn.Value) != "" {
		return strings.TrimSpace(fn.Value)
	}
	if n := card.Name(); n != nil {
		return strings.TrimSpace(strings.Join([]string{n.GivenName, n.FamilyName}, " "))
	}
	return ""
}

// parseDate accepts the vCard date forms that carry a year.
func parseDate(value string) (time.Time, error) {
	formats := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formats {
		if t, err := time.Parse(f, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errDateParse
}
