package model

import "time"

// Project is a portfolio entry. Image holds the public path of the stored
// picture, e.g. /uploads/projects/project-1700000000000-42.jpg.
type Project struct {
	ID            int64     `json:"id" db:"id"`
	TitleEn       string    `json:"titleEn" db:"title_en"`
	TitleAr       *string   `json:"titleAr" db:"title_ar"`
	DescriptionEn string    `json:"descriptionEn" db:"description_en"`
	DescriptionAr *string   `json:"descriptionAr" db:"description_ar"`
	Image         string    `json:"image" db:"image"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// ProjectPatch carries the fields of a partial update. Nil means "keep the
// current value".
type ProjectPatch struct {
	TitleEn       *string
	TitleAr       *string
	DescriptionEn *string
	DescriptionAr *string
	Image         *string
}

// Apply merges the patch over p. Empty required fields are ignored so they
// keep their previous value; optional fields may be cleared with "".
func (pp ProjectPatch) Apply(p *Project) {
	if pp.TitleEn != nil && *pp.TitleEn != "" {
		p.TitleEn = *pp.TitleEn
	}
	if pp.DescriptionEn != nil && *pp.DescriptionEn != "" {
		p.DescriptionEn = *pp.DescriptionEn
	}
	if pp.TitleAr != nil {
		p.TitleAr = NullableString(*pp.TitleAr)
	}
	if pp.DescriptionAr != nil {
		p.DescriptionAr = NullableString(*pp.DescriptionAr)
	}
	if pp.Image != nil && *pp.Image != "" {
		p.Image = *pp.Image
	}
}

// NullableString maps "" to nil so optional columns store NULL instead of an
// empty string.
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
