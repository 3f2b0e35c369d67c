package services

import (
	"strconv"

	"github.com/taskbridge/intake-backend/v1/models"
)

// BuildSnapshots builds the denormalized ledger snapshot from canonical
// fields at intake time. Booleans are denormalized the way listings display
// them ("Yes"/"No").
func BuildSnapshots(kind models.SubmitterKind, c *CanonicalFields, identity *ResolvedIdentity, profileImageURL string, attachmentURLs []string, documents map[string]string) Snapshots {
	profile := models.JSONMap{
		"name":              c.Name,
		"email":             identity.Email,
		"phone":             c.Phone,
		"address":           c.Address,
		"postal_code":       c.PostalCode,
		"profile_image_url": profileImageURL,
	}
	if c.BirthDate != "" {
		profile["birth_date"] = c.BirthDate
	}
	if c.Age != "" {
		profile["age"] = c.Age
	}

	var detail models.JSONMap
	switch kind {
	case models.KindRequester:
		detail = models.JSONMap{
			"job_type":       c.JobType,
			"description":    c.JobDescription,
			"scheduled_date": c.ScheduledDate,
			"scheduled_time": c.ScheduledTime,
			"is_urgent":      YesNo(c.IsUrgent),
			"tools_provided": YesNo(c.ToolsProvided),
			"worker_count":   strconv.Itoa(intOr(c.WorkerCount, 1)),
		}
		if len(attachmentURLs) > 0 {
			detail["attachment_urls"] = attachmentURLs
		}
	case models.KindProvider:
		detail = models.JSONMap{
			"categories":       c.Categories,
			"experience_years": strconv.Itoa(intOr(c.ExperienceYears, 0)),
			"has_own_tools":    YesNo(c.HasOwnTools),
			"description":      c.ServiceDescription,
		}
		if len(c.TaskSelections) > 0 {
			detail["task_selections"] = c.TaskSelections
		}
		if len(documents) > 0 {
			detail["documents"] = documents
		}
	}

	rate := models.JSONMap{}
	if rateType, err := CanonicalRateType(c); err == nil {
		rate["rate_type"] = string(rateType)
		switch rateType {
		case models.RateTypeHourly:
			if from, ok := parseRate(c.RateFrom); ok {
				rate["rate_from"] = from
			}
			if to, ok := parseRate(c.RateTo); ok {
				rate["rate_to"] = to
			}
		case models.RateTypeFixed:
			if value, ok := parseRate(c.RateValue); ok {
				rate["rate_value"] = value
			}
		}
	}

	return Snapshots{Profile: profile, Detail: detail, Rate: rate}
}

// profileSnapshot denormalizes a live profile row
func profileSnapshot(p *models.SubmissionProfile) models.JSONMap {
	snapshot := models.JSONMap{
		"name":              p.Name,
		"email":             p.Email,
		"phone":             p.Phone,
		"address":           p.Address,
		"postal_code":       p.PostalCode,
		"profile_image_url": p.ProfileImageURL,
	}
	if p.BirthDate != "" {
		snapshot["birth_date"] = p.BirthDate
	}
	if p.Age != nil {
		snapshot["age"] = strconv.Itoa(*p.Age)
	}
	return snapshot
}

// jobSnapshot denormalizes a live requester detail row
func jobSnapshot(d *models.JobDetail) models.JSONMap {
	snapshot := models.JSONMap{
		"job_type":       d.JobType,
		"description":    d.Description,
		"scheduled_date": d.ScheduledDate,
		"scheduled_time": d.ScheduledTime,
		"is_urgent":      YesNo(d.IsUrgent),
		"tools_provided": YesNo(d.ToolsProvided),
		"worker_count":   strconv.Itoa(d.WorkerCount),
	}
	if len(d.AttachmentURLs) > 0 {
		snapshot["attachment_urls"] = []string(d.AttachmentURLs)
	}
	return snapshot
}

// serviceSnapshot denormalizes a live provider detail row
func serviceSnapshot(d *models.ServiceDetail) models.JSONMap {
	snapshot := models.JSONMap{
		"categories":       []string(d.Categories),
		"experience_years": strconv.Itoa(d.ExperienceYears),
		"has_own_tools":    YesNo(d.HasOwnTools),
		"description":      d.Description,
	}
	if len(d.TaskSelections) > 0 {
		snapshot["task_selections"] = map[string]interface{}(d.TaskSelections)
	}
	return snapshot
}

// rateSnapshot denormalizes a live rate card row
func rateSnapshot(r *models.RateCard) models.JSONMap {
	snapshot := models.JSONMap{"rate_type": r.RateType}
	if r.RateFrom != nil {
		snapshot["rate_from"] = *r.RateFrom
	}
	if r.RateTo != nil {
		snapshot["rate_to"] = *r.RateTo
	}
	if r.RateValue != nil {
		snapshot["rate_value"] = *r.RateValue
	}
	return snapshot
}

// documentsMap renders a live document row as slot-to-URL pairs
func documentsMap(d *models.ProviderDocuments) map[string]string {
	return map[string]string{
		models.SlotPrimaryID:        d.PrimaryID,
		models.SlotSecondaryID:      d.SecondaryID,
		models.SlotPoliceClearance:  d.PoliceClearance,
		models.SlotAddressProof:     d.AddressProof,
		models.SlotMedicalClearance: d.MedicalClearance,
		models.SlotCertifications:   d.Certifications,
	}
}
