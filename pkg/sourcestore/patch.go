package sourcestore

import "github.com/aretw0/pipeprep/pkg/domain"

// Patch is a partial selection update. Nil fields are left untouched.
// Credential and node id are not patchable; they follow datasource and
// credential switches.
type Patch struct {
	LocalFiles *[]domain.LocalFile `json:"local_files,omitempty"`

	DocumentsData   *[]map[string]any            `json:"documents_data,omitempty"`
	SearchValue     *string                      `json:"search_value,omitempty"`
	SelectedPagesID *[]string                    `json:"selected_pages_id,omitempty"`
	OnlineDocuments *[]domain.OnlineDocumentPage `json:"online_documents,omitempty"`
	CurrentDocument *domain.OnlineDocumentPage   `json:"current_document,omitempty"`

	CrawlStep      *domain.CrawlStep     `json:"crawl_step,omitempty"`
	CrawlResult    *domain.CrawlResult   `json:"crawl_result,omitempty"`
	CurrentWebsite *domain.WebsitePage   `json:"current_website,omitempty"`
	WebsitePages   *[]domain.WebsitePage `json:"website_pages,omitempty"`
	PreviewIndex   *int                  `json:"preview_index,omitempty"`

	OnlineDriveFiles *[]domain.OnlineDriveFile `json:"online_drive_files,omitempty"`
	Bucket           *string                   `json:"bucket,omitempty"`
	Prefix           *[]string                 `json:"prefix,omitempty"`
	Keywords         *string                   `json:"keywords,omitempty"`
	SelectedFileIDs  *[]string                 `json:"selected_file_ids,omitempty"`
}

// Apply writes every non-nil field of p in a single critical section.
func (s *Store) Apply(p Patch) {
	s.Update(func(st *domain.SourceState) {
		setIf(&st.LocalFiles, p.LocalFiles)
		setIf(&st.DocumentsData, p.DocumentsData)
		setIf(&st.SearchValue, p.SearchValue)
		setIf(&st.SelectedPagesID, p.SelectedPagesID)
		setIf(&st.OnlineDocuments, p.OnlineDocuments)
		if p.CurrentDocument != nil {
			doc := *p.CurrentDocument
			st.CurrentDocument = &doc
		}
		setIf(&st.CrawlStep, p.CrawlStep)
		if p.CrawlResult != nil {
			res := *p.CrawlResult
			st.CrawlResult = &res
		}
		if p.CurrentWebsite != nil {
			site := *p.CurrentWebsite
			st.CurrentWebsite = &site
		}
		setIf(&st.WebsitePages, p.WebsitePages)
		setIf(&st.PreviewIndex, p.PreviewIndex)
		setIf(&st.OnlineDriveFiles, p.OnlineDriveFiles)
		setIf(&st.Bucket, p.Bucket)
		setIf(&st.Prefix, p.Prefix)
		setIf(&st.Keywords, p.Keywords)
		setIf(&st.SelectedFileIDs, p.SelectedFileIDs)
	})
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
