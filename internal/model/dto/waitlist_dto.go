package dto

type JoinWaitlistRequest struct {
	Email          string   `json:"email" binding:"required"`
	FirstName      string   `json:"firstName" binding:"required"`
	LastName       string   `json:"lastName" binding:"required"`
	Company        string   `json:"company"`
	Role           string   `json:"role"`
	UseCase        string   `json:"useCase"`
	Interests      []string `json:"interests"`
	ReferralSource string   `json:"referralSource"`
	Newsletter     bool     `json:"newsletter"`
}

type JoinWaitlistResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Position   int64  `json:"position"`
	TotalCount int64  `json:"totalCount"`
}

type ReferralCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

type WaitlistStats struct {
	Total              int64            `json:"total"`
	Recent             int64            `json:"recent"`
	ByStatus           map[string]int64 `json:"byStatus"`
	TopReferralSources []ReferralCount  `json:"topReferralSources"`
}
