package watch

import (
	"fmt"
	"strings"

	"github.com/queuesync/queuesync-go/pkg/statusapi"
)

// FormatRoomStatus renders a room status response.
func FormatRoomStatus(siteSlug string, resp *statusapi.RoomStatusResponse) string {
	var sb strings.Builder
	site := resp.SiteSlug
	if site == "" {
		site = siteSlug
	}
	sb.WriteString(formatRoomLine(site+"/", resp.Status))
	if t := resp.MyTicket; t != nil {
		fmt.Fprintf(&sb, "  ticket %s: %s", t.DisplayNumber, t.Status)
		if t.Status == statusapi.TicketWaiting {
			fmt.Fprintf(&sb, ", %d ahead, ~%d min", t.AheadCount, t.EstimatedWaitMinutes)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatSiteStatus renders every room of a site.
func FormatSiteStatus(status *statusapi.SiteStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d room(s)\n", status.SiteSlug, len(status.Rooms))
	for _, room := range status.Rooms {
		sb.WriteString("  ")
		sb.WriteString(formatRoomLine("", room))
	}
	return sb.String()
}

func formatRoomLine(prefix string, s statusapi.RoomStatus) string {
	name := s.RoomSlug
	if s.RoomName != "" && s.RoomName != s.RoomSlug {
		name = fmt.Sprintf("%s (%s)", s.RoomSlug, s.RoomName)
	}
	return fmt.Sprintf("[%s%s] serving %s  next %s  waiting %d  take %s\n",
		prefix, name, s.Serving(), s.Next(), s.WaitingCount, s.NextToTakeDisplayNumber)
}
