package models

type SignupData struct {
	Email       string   `json:"email" form:"email" binding:"required,email"`
	Preferences []string `json:"preferences" form:"preferences"`
}

type PreferencesData struct {
	Email       string   `json:"email" form:"email" binding:"required,email"`
	Preferences []string `json:"preferences" form:"preferences"`
}
