package gmail

// ListOptions narrows a mailbox listing.
type ListOptions struct {
	// MaxResults caps the page size. Zero means the server default.
	MaxResults int64
	// Labels filters to messages carrying every listed label id.
	Labels []string
	// Query is a Gmail search expression, passed through verbatim.
	Query string
	// PageToken resumes a previous listing.
	PageToken string
}

// MessageSummary is the lightweight per-message shape returned by listing
// and thread reads. It is derived from the remote response on every
// request and never cached.
//
// When the per-message metadata fetch fails, Error carries the failure and
// only ID is reliable; the listing as a whole still succeeds.
type MessageSummary struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId,omitempty"`
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Date     string   `json:"date,omitempty"`
	Snippet  string   `json:"snippet,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// MessageList is one page of summaries plus the token for the next page.
type MessageList struct {
	Messages      []MessageSummary `json:"messages"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

// Message is a fully fetched message with its decoded body.
type Message struct {
	MessageSummary
	MessageID string `json:"messageId,omitempty"`
	Body      string `json:"body"`
}

// Thread is an ordered set of message summaries sharing one conversation.
type Thread struct {
	ID       string           `json:"id"`
	Messages []MessageSummary `json:"messages"`
}

// OutgoingMessage is a mail to be sent. To, Subject and Body are required;
// From selects the sending identity in the delegated flow and may carry a
// `Name <addr>` display form.
type OutgoingMessage struct {
	To      string `json:"to"`
	Cc      string `json:"cc,omitempty"`
	Bcc     string `json:"bcc,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
