package session

// ListSessionsRequest represents query parameters for listing live sessions
type ListSessionsRequest struct {
	Status string `query:"status" validate:"omitempty,session_status"`
}

// OutputURLRequest represents query parameters for an output link
type OutputURLRequest struct {
	ExpiryMinutes int `query:"expiry_minutes" validate:"omitempty,min=1,max=10080"`
}

// ListHistoryRequest represents query parameters for listing session history
type ListHistoryRequest struct {
	Status    string `query:"status" validate:"omitempty,session_status"`
	MeetingID string `query:"meeting_id" validate:"omitempty,max=1024"`
	Page      int    `query:"page" validate:"min=1"`
	PageSize  int    `query:"page_size" validate:"min=1,max=100"`
}
