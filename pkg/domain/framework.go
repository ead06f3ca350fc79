package domain

// Framework is a machine-readable governance framework document.
// Slices keep document order; nothing is reordered between load and re-serialization.
type Framework struct {
	Context       []string `json:"@context,omitempty"`
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Format        string   `json:"format,omitempty"`
	ID            string   `json:"id,omitempty"`
	Description   string   `json:"description,omitempty"`
	LastUpdated   string   `json:"last_updated,omitempty"`
	DocsURI       string   `json:"docs_uri,omitempty"`
	DataURI       string   `json:"data_uri,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	Jurisdictions []string `json:"jurisdictions,omitempty"`
	Geos          []string `json:"geos,omitempty"`

	Schemas      []Schema         `json:"schemas,omitempty"`
	CredDefs     []Schema         `json:"cred_defs,omitempty"`
	Participants []Participant    `json:"participants"`
	Roles        []Role           `json:"roles"`
	Permissions  []PermissionRule `json:"permissions"`
	Actions      []Action         `json:"actions"`
	Privileges   []PrivilegeRule  `json:"privileges"`
	Flows        []FlowState      `json:"flows"`
}
