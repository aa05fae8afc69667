package model

// Profile is the per-user row created on sign-up. ReportLogo holds an inline
// image (data URL or base64) and ReportLegend the text printed on reports.
type Profile struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	Position     string `json:"position"`
	ReportLogo   string `json:"reportLogo,omitempty"`
	ReportLegend string `json:"reportLegend,omitempty"`
}
