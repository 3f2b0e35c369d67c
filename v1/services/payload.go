package services

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/taskbridge/intake-backend/v1/models"
)

// Attachment is a normalized file reference. Either HostedURL is set
// (pass-through, no upload) or MIME+Base64 carry an inline payload.
type Attachment struct {
	HostedURL string
	MIME      string
	Base64    string
}

// IsInline reports whether the attachment still needs uploading
func (a *Attachment) IsInline() bool {
	return a != nil && a.HostedURL == "" && a.Base64 != ""
}

// Decode returns the binary payload of an inline attachment
func (a *Attachment) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Base64)
}

// CanonicalFields is the normalized field set produced from one raw
// submission payload. Numeric-looking fields stay as strings here and are
// coerced at write time.
type CanonicalFields struct {
	// Identity section
	AccountID    string
	AuthID       string
	Email        string
	Name         string
	Phone        string
	Address      string
	PostalCode   string
	BirthDate    string
	Age          string
	ProfileImage *Attachment

	// Requester detail section
	JobType        string
	JobDescription string
	ScheduledDate  string
	ScheduledTime  string
	IsUrgent       bool
	ToolsProvided  bool
	WorkerCount    string
	Attachments    []*Attachment

	// Provider detail section
	Categories         []string
	TaskSelections     map[string][]string
	ExperienceYears    string
	HasOwnTools        bool
	ServiceDescription string

	// Rate section
	RateType  string
	RateFrom  string
	RateTo    string
	RateValue string

	// Provider document slots
	Documents map[string]*Attachment
}

// fieldAliases maps each canonical field name to an ordered list of source
// paths. Dotted paths descend into nested payload sections; the first alias
// whose value is non-null and non-blank wins.
var fieldAliases = map[string][]string{
	"account_id":  {"account_id", "accountId", "user_id", "info.account_id", "metadata.account_id"},
	"auth_id":     {"auth_id", "authId", "auth_uid", "info.auth_id", "metadata.auth_id"},
	"email":       {"email", "info.email", "contact.email", "personal.email", "user_email", "metadata.email"},
	"name":        {"name", "full_name", "info.name", "info.full_name", "personal.name"},
	"phone":       {"phone", "phone_number", "mobile", "info.phone", "contact.phone"},
	"address":     {"address", "info.address", "contact.address"},
	"postal_code": {"postal_code", "pincode", "zip", "info.postal_code", "contact.postal_code"},
	"birth_date":  {"birth_date", "dob", "date_of_birth", "info.birth_date", "info.dob"},
	"age":         {"age", "info.age"},

	"profile_image": {"profile_image", "profile_photo", "avatar", "info.profile_image"},

	"job_type":        {"job_type", "task_type", "details.job_type", "details.task_type"},
	"job_description": {"job_description", "details.job_description", "details.description", "description"},
	"scheduled_date":  {"scheduled_date", "schedule_date", "details.scheduled_date", "details.date", "date"},
	"scheduled_time":  {"scheduled_time", "details.scheduled_time", "details.time", "time"},
	"is_urgent":       {"is_urgent", "urgent", "details.is_urgent", "details.urgent"},
	"tools_provided":  {"tools_provided", "has_tools", "details.tools_provided"},
	"worker_count":    {"worker_count", "workers_count", "num_workers", "details.worker_count"},
	"attachments":     {"attachments", "files", "details.attachments"},

	"categories":          {"categories", "service_categories", "details.categories", "services"},
	"task_selections":     {"task_selections", "selected_tasks", "details.task_selections"},
	"experience_years":    {"experience_years", "years_of_experience", "details.experience_years"},
	"has_own_tools":       {"has_own_tools", "own_tools", "details.has_own_tools"},
	"service_description": {"service_description", "details.service_description", "details.about", "about"},

	"rate_type":  {"rate_type", "pricing.rate_type", "rate.type", "pricing_mode"},
	"rate_from":  {"rate_from", "pricing.rate_from", "rate.from", "hourly_from"},
	"rate_to":    {"rate_to", "pricing.rate_to", "rate.to", "hourly_to"},
	"rate_value": {"rate_value", "pricing.rate_value", "rate.value", "fixed_rate"},

	"documents": {"documents", "docs", "details.documents"},
}

// lookupPath walks a dotted path through nested payload sections
func lookupPath(raw map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = raw
	for _, part := range parts {
		section, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = section[part]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

// firstAlias resolves a canonical field against its ordered alias list.
// A nil value or a blank string does not win.
func firstAlias(raw map[string]interface{}, canonical string) (interface{}, bool) {
	for _, path := range fieldAliases[canonical] {
		value, ok := lookupPath(raw, path)
		if !ok || value == nil {
			continue
		}
		if s, isStr := value.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return value, true
	}
	return nil, false
}

// stringOf renders a payload value as a trimmed string
func stringOf(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return ""
	}
}

// ParseLooseBool coerces a tolerant vocabulary to a boolean. Unrecognized
// input maps to false; the parser never errors.
func ParseLooseBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v == 1
	case int:
		return v == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "y", "t":
			return true
		}
		return false
	default:
		return false
	}
}

// YesNo denormalizes a boolean the way listings display it
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// flattenStrings accepts a list or a map-of-lists and returns a
// de-duplicated flat list preserving first-seen order. Map keys are visited
// in sorted order so the result is deterministic.
func flattenStrings(value interface{}) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	var walk func(v interface{})
	walk = func(v interface{}) {
		switch vv := v.(type) {
		case string:
			add(vv)
		case []interface{}:
			for _, item := range vv {
				walk(item)
			}
		case []string:
			for _, item := range vv {
				add(item)
			}
		case map[string]interface{}:
			keys := make([]string, 0, len(vv))
			for k := range vv {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(vv[k])
			}
		default:
			add(stringOf(v))
		}
	}
	walk(value)
	return out
}

// parseAttachment normalizes the three accepted attachment shapes: an
// inline object with MIME type and payload, an already-hosted absolute URL,
// or a bare encoded blob promoted to an inline image.
func parseAttachment(value interface{}) *Attachment {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			return &Attachment{HostedURL: s}
		}
		if strings.HasPrefix(s, "data:") {
			return parseDataURI(s)
		}
		// Bare base64 blob: infer a generic image type
		return &Attachment{MIME: "image/jpeg", Base64: s}
	case map[string]interface{}:
		if url := stringOf(firstOf(v, "url", "href", "location")); url != "" {
			return &Attachment{HostedURL: url}
		}
		data := stringOf(firstOf(v, "data", "content", "base64", "payload"))
		if data == "" {
			return nil
		}
		if strings.HasPrefix(data, "data:") {
			return parseDataURI(data)
		}
		mime := stringOf(firstOf(v, "mime", "mimeType", "type", "contentType"))
		if mime == "" {
			mime = "image/jpeg"
		}
		return &Attachment{MIME: mime, Base64: data}
	default:
		return nil
	}
}

func firstOf(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

// parseDataURI splits data:<mime>;base64,<payload>
func parseDataURI(s string) *Attachment {
	rest := strings.TrimPrefix(s, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return nil
	}
	meta, payload := rest[:comma], rest[comma+1:]
	mime := meta
	if semi := strings.Index(meta, ";"); semi >= 0 {
		mime = meta[:semi]
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	return &Attachment{MIME: mime, Base64: payload}
}

func parseAttachmentList(value interface{}) []*Attachment {
	var out []*Attachment
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if att := parseAttachment(item); att != nil {
				out = append(out, att)
			}
		}
	default:
		if att := parseAttachment(value); att != nil {
			out = append(out, att)
		}
	}
	return out
}

func parseTaskSelections(value interface{}) map[string][]string {
	out := make(map[string][]string)
	switch v := value.(type) {
	case map[string]interface{}:
		for category, tasks := range v {
			if list := flattenStrings(tasks); len(list) > 0 {
				out[category] = list
			}
		}
	case []interface{}:
		if list := flattenStrings(v); len(list) > 0 {
			out["general"] = list
		}
	}
	return out
}

// Normalize turns an arbitrarily-shaped payload into the canonical field
// set for one submitter kind. It holds no shared state; every call returns
// a fresh struct.
func Normalize(kind models.SubmitterKind, raw map[string]interface{}) *CanonicalFields {
	c := &CanonicalFields{
		TaskSelections: map[string][]string{},
		Documents:      map[string]*Attachment{},
	}

	str := func(canonical string) string {
		if v, ok := firstAlias(raw, canonical); ok {
			return stringOf(v)
		}
		return ""
	}
	boolean := func(canonical string) bool {
		if v, ok := firstAlias(raw, canonical); ok {
			return ParseLooseBool(v)
		}
		return false
	}

	c.AccountID = str("account_id")
	c.AuthID = str("auth_id")
	c.Email = CanonicalEmail(str("email"))
	c.Name = str("name")
	c.Phone = str("phone")
	c.Address = str("address")
	c.PostalCode = str("postal_code")
	c.BirthDate = str("birth_date")
	c.Age = str("age")
	if v, ok := firstAlias(raw, "profile_image"); ok {
		c.ProfileImage = parseAttachment(v)
	}

	c.RateType = str("rate_type")
	c.RateFrom = str("rate_from")
	c.RateTo = str("rate_to")
	c.RateValue = str("rate_value")

	switch kind {
	case models.KindRequester:
		c.JobType = str("job_type")
		c.JobDescription = str("job_description")
		c.ScheduledDate = str("scheduled_date")
		c.ScheduledTime = str("scheduled_time")
		c.IsUrgent = boolean("is_urgent")
		c.ToolsProvided = boolean("tools_provided")
		c.WorkerCount = str("worker_count")
		if v, ok := firstAlias(raw, "attachments"); ok {
			c.Attachments = parseAttachmentList(v)
		}
	case models.KindProvider:
		if v, ok := firstAlias(raw, "categories"); ok {
			c.Categories = flattenStrings(v)
		}
		if v, ok := firstAlias(raw, "task_selections"); ok {
			c.TaskSelections = parseTaskSelections(v)
		}
		c.ExperienceYears = str("experience_years")
		c.HasOwnTools = boolean("has_own_tools")
		c.ServiceDescription = str("service_description")
		c.Documents = normalizeDocuments(raw)
	}

	return c
}

// normalizeDocuments resolves each fixed document slot from either a
// documents section or a flat top-level key
func normalizeDocuments(raw map[string]interface{}) map[string]*Attachment {
	out := make(map[string]*Attachment)

	var section map[string]interface{}
	if v, ok := firstAlias(raw, "documents"); ok {
		section, _ = v.(map[string]interface{})
	}

	for _, slot := range models.DocumentSlots {
		var value interface{}
		if section != nil {
			value = section[slot]
		}
		if value == nil {
			value, _ = lookupPath(raw, slot)
		}
		if value == nil {
			continue
		}
		if att := parseAttachment(value); att != nil {
			out[slot] = att
		}
	}
	return out
}

// NormalizePartial resolves only the canonical fields actually present in a
// partial-edit payload. Fields absent from the payload are absent from the
// result, preserving partial-update semantics downstream.
func NormalizePartial(kind models.SubmitterKind, raw map[string]interface{}) map[string]interface{} {
	edits := make(map[string]interface{})

	put := func(canonical string) {
		if v, ok := firstAlias(raw, canonical); ok {
			edits[canonical] = stringOf(v)
		}
	}
	putBool := func(canonical string) {
		if v, ok := firstAlias(raw, canonical); ok {
			edits[canonical] = ParseLooseBool(v)
		}
	}

	for _, f := range []string{"name", "phone", "address", "postal_code", "birth_date", "age"} {
		put(f)
	}
	if v, ok := firstAlias(raw, "profile_image"); ok {
		if att := parseAttachment(v); att != nil {
			edits["profile_image"] = att
		}
	}

	for _, f := range []string{"rate_type", "rate_from", "rate_to", "rate_value"} {
		put(f)
	}

	switch kind {
	case models.KindRequester:
		for _, f := range []string{"job_type", "job_description", "scheduled_date", "scheduled_time", "worker_count"} {
			put(f)
		}
		putBool("is_urgent")
		putBool("tools_provided")
	case models.KindProvider:
		if v, ok := firstAlias(raw, "categories"); ok {
			edits["categories"] = flattenStrings(v)
		}
		if v, ok := firstAlias(raw, "task_selections"); ok {
			edits["task_selections"] = parseTaskSelections(v)
		}
		put("experience_years")
		putBool("has_own_tools")
		put("service_description")
		for slot, att := range normalizeDocuments(raw) {
			edits["documents."+slot] = att
		}
	}

	return edits
}

// CanonicalEmail lowercases and trims an email so lookups and the ledger
// anchor agree on case
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
