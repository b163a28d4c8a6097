package statusapi

import "time"

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

// Ticket states.
const (
	TicketWaiting   TicketStatus = "Waiting"
	TicketServing   TicketStatus = "Serving"
	TicketCompleted TicketStatus = "Completed"
	TicketSkipped   TicketStatus = "Skipped"
)

// RoomStatus is the computed queue state of one room.
type RoomStatus struct {
	RoomID                  string    `json:"roomId"`
	RoomSlug                string    `json:"roomSlug"`
	RoomName                string    `json:"roomName"`
	ServiceDate             string    `json:"serviceDate"`
	ServiceMinutes          int       `json:"serviceMinutes"`
	CurrentNumber           *int      `json:"currentNumber"`
	CurrentDisplayNumber    *string   `json:"currentDisplayNumber"`
	NextNumber              *int      `json:"nextNumber"`
	NextDisplayNumber       *string   `json:"nextDisplayNumber"`
	NextToTakeNumber        int       `json:"nextToTakeNumber"`
	NextToTakeDisplayNumber string    `json:"nextToTakeDisplayNumber"`
	WaitingCount            int       `json:"waitingCount"`
	Now                     time.Time `json:"now"`
}

// Serving returns the display number being served, or "-".
func (s RoomStatus) Serving() string {
	if s.CurrentDisplayNumber == nil || *s.CurrentDisplayNumber == "" {
		return "-"
	}
	return *s.CurrentDisplayNumber
}

// Next returns the next display number to be called, or "-".
func (s RoomStatus) Next() string {
	if s.NextDisplayNumber == nil || *s.NextDisplayNumber == "" {
		return "-"
	}
	return *s.NextDisplayNumber
}

// MyTicket is the caller's own ticket in a room.
type MyTicket struct {
	TicketID             string       `json:"ticketId"`
	Number               int          `json:"number"`
	DisplayNumber        string       `json:"displayNumber"`
	Status               TicketStatus `json:"status"`
	AheadCount           int          `json:"aheadCount"`
	EstimatedWaitMinutes int          `json:"estimatedWaitMinutes"`
	EstimatedServeTime   time.Time    `json:"estimatedServeTime"`
}

// RoomStatusResponse is returned by GetRoomStatus.
type RoomStatusResponse struct {
	SiteSlug string     `json:"siteSlug"`
	RoomSlug string     `json:"roomSlug"`
	Status   RoomStatus `json:"status"`
	MyTicket *MyTicket  `json:"myTicket"`
}

// SiteStatus is the state of every room of a site.
type SiteStatus struct {
	SiteSlug string       `json:"siteSlug"`
	Now      time.Time    `json:"now"`
	Rooms    []RoomStatus `json:"rooms"`
}

// RoomCatalog describes a room.
type RoomCatalog struct {
	RoomID         string `json:"roomId"`
	RoomSlug       string `json:"roomSlug"`
	RoomName       string `json:"roomName"`
	ServiceMinutes int    `json:"serviceMinutes"`
}

// SiteCatalog describes a site and its rooms.
type SiteCatalog struct {
	SiteID   string        `json:"siteId"`
	SiteSlug string        `json:"siteSlug"`
	SiteName string        `json:"siteName"`
	Rooms    []RoomCatalog `json:"rooms"`
}
