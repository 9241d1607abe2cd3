package connector

import (
	"fmt"
	"time"

	"tradecore/pkg/model"
)

// ParseFrame dispatches raw to the parser for exchange and normalizes the
// result into an Event. Every wire format carries its own symbol field, so
// parsers derive Symbol from the payload rather than the caller's
// configured set. Parse failures never panic — the caller increments an
// error counter and drops the frame, per spec.md §4.4.
func ParseFrame(exchange model.Exchange, raw []byte) (Event, error) {
	switch exchange {
	case model.ExchangeBinance:
		return parseBinanceFrame(raw)
	case model.ExchangeOKX:
		return parseOKXFrame(raw)
	case model.ExchangeHuobi:
		return parseHuobiFrame(raw)
	default:
		return Event{}, fmt.Errorf("connector: unknown exchange %q", exchange)
	}
}

func errorEvent(exchange model.Exchange, err error) Event {
	return Event{
		Kind: EventError,
		Error: &model.StreamError{
			Exchange:  exchange,
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		},
	}
}
