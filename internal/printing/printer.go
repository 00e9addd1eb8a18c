// Package printing is the ticket/receipt collaborator boundary. The core
// invokes it at exactly two trigger points: a newly merged order with lines
// for a print-enabled department, and a table being freed with the register
// print flag on. Print success is never the core's concern.
package printing

import (
	"context"

	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/models"
)

// TicketData is everything a department printer needs for one ticket.
type TicketData struct {
	Items          []models.OrderItem
	Department     string
	TableLabel     string
	WaiterName     string
	RestaurantName string
}

// Printer renders a ticket. Implementations must tolerate being called
// redundantly; the caller fires and forgets.
type Printer interface {
	PrintTicket(ctx context.Context, ticket TicketData) error
}

// LogPrinter writes tickets to the log. The default when no hardware
// printer integration is wired in.
type LogPrinter struct{}

// PrintTicket logs the ticket lines.
func (LogPrinter) PrintTicket(_ context.Context, ticket TicketData) error {
	event := log.Info().
		Str("department", ticket.Department).
		Str("table", ticket.TableLabel).
		Str("waiter", ticket.WaiterName).
		Int("lines", len(ticket.Items))
	if ticket.RestaurantName != "" {
		event = event.Str("restaurant", ticket.RestaurantName)
	}
	event.Msg("Printing ticket")
	return nil
}
