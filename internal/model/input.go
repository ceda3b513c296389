package model

// Request inputs carry their validation rules as struct tags. The message
// tables map "<field>.<rule>" to the text returned to clients.

// LoginInput is the body of POST /api/auth/login.
type LoginInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required"`
}

func (LoginInput) Messages() map[string]string {
	return map[string]string{
		"username.required": "Username is required",
		"username.min":      "Username must be between 3 and 50 characters",
		"username.max":      "Username must be between 3 and 50 characters",
		"password.required": "Password is required",
	}
}

// ContactInput is the body of POST /api/contact.
type ContactInput struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email,max=150"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Message string `json:"message" validate:"required,min=10,max=2000"`
}

func (ContactInput) Messages() map[string]string {
	return map[string]string{
		"name.required":    "Name is required",
		"name.min":         "Name must be between 2 and 100 characters",
		"name.max":         "Name must be between 2 and 100 characters",
		"email.required":   "Email is required",
		"email.email":      "Please provide a valid email address",
		"email.max":        "Please provide a valid email address",
		"phone.phone":      "Please provide a valid phone number",
		"message.required": "Message is required",
		"message.min":      "Message must be between 10 and 2000 characters",
		"message.max":      "Message must be between 10 and 2000 characters",
	}
}

// ProjectInput holds the form fields of POST /api/projects.
type ProjectInput struct {
	TitleEn       string `form:"titleEn" validate:"required,max=255"`
	TitleAr       string `form:"titleAr" validate:"omitempty,max=255"`
	DescriptionEn string `form:"descriptionEn" validate:"required"`
	DescriptionAr string `form:"descriptionAr"`
}

func (ProjectInput) Messages() map[string]string {
	return map[string]string{
		"titleEn.required":       "English title is required",
		"titleEn.max":            "Title cannot exceed 255 characters",
		"titleAr.max":            "Arabic title cannot exceed 255 characters",
		"descriptionEn.required": "English description is required",
	}
}

// ProjectUpdateInput holds the form fields of PUT /api/projects/{id}. Every
// field is optional; nil means the field was not sent.
type ProjectUpdateInput struct {
	TitleEn       *string `form:"titleEn" validate:"omitempty,max=255"`
	TitleAr       *string `form:"titleAr" validate:"omitempty,max=255"`
	DescriptionEn *string `form:"descriptionEn"`
	DescriptionAr *string `form:"descriptionAr"`
}

func (ProjectUpdateInput) Messages() map[string]string {
	return map[string]string{
		"titleEn.max": "Title cannot exceed 255 characters",
		"titleAr.max": "Arabic title cannot exceed 255 characters",
	}
}

// Patch converts the input into a ProjectPatch.
func (in ProjectUpdateInput) Patch() ProjectPatch {
	return ProjectPatch{
		TitleEn:       in.TitleEn,
		TitleAr:       in.TitleAr,
		DescriptionEn: in.DescriptionEn,
		DescriptionAr: in.DescriptionAr,
	}
}
