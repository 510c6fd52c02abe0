package msgraph

// Wire shapes for the calendar provider. Field names follow the provider's
// JSON exactly; normalisation into domain meetings happens in core/meetings

// DateTimeZone is the provider's split timestamp representation
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// EmailAddress identifies a person on an event
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Attendee is one invitee with response status
type Attendee struct {
	Type         string       `json:"type"`
	EmailAddress EmailAddress `json:"emailAddress"`
	Status       struct {
		Response string `json:"response"`
	} `json:"status"`
}

// Organizer is the event owner
type Organizer struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// Event is one calendar event as returned by the provider
type Event struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Start       DateTimeZone `json:"start"`
	End         DateTimeZone `json:"end"`
	IsCancelled bool         `json:"isCancelled"`
	IsOnline    bool         `json:"isOnlineMeeting"`
	IsAllDay    bool         `json:"isAllDay"`
	Organizer   Organizer    `json:"organizer"`
	Attendees   []Attendee   `json:"attendees"`
	Categories  []string     `json:"categories"`
	BodyPreview string       `json:"bodyPreview"`
}

// User is the slim profile shape used for identity checks
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

type eventPage struct {
	Value    []Event `json:"value"`
	NextLink string  `json:"@odata.nextLink"`
}
