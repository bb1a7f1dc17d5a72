package sourcestore

import "github.com/aretw0/pipeprep/pkg/domain"

// Local file

func (s *Store) SetLocalFiles(files []domain.LocalFile) {
	s.Update(func(st *domain.SourceState) { st.LocalFiles = append([]domain.LocalFile(nil), files...) })
}

// AddLocalFile appends a file, replacing an entry with the same id.
func (s *Store) AddLocalFile(file domain.LocalFile) {
	s.Update(func(st *domain.SourceState) {
		for i, f := range st.LocalFiles {
			if f.File.ID != "" && f.File.ID == file.File.ID {
				st.LocalFiles[i] = file
				return
			}
		}
		st.LocalFiles = append(st.LocalFiles, file)
	})
}

// Online document

func (s *Store) SetDocumentsData(data []map[string]any) {
	s.Update(func(st *domain.SourceState) { st.DocumentsData = append([]map[string]any(nil), data...) })
}

func (s *Store) SetSearchValue(v string) {
	s.Update(func(st *domain.SourceState) { st.SearchValue = v })
}

func (s *Store) SetSelectedPagesID(ids []string) {
	s.Update(func(st *domain.SourceState) { st.SelectedPagesID = append([]string(nil), ids...) })
}

func (s *Store) SetOnlineDocuments(pages []domain.OnlineDocumentPage) {
	s.Update(func(st *domain.SourceState) { st.OnlineDocuments = append([]domain.OnlineDocumentPage(nil), pages...) })
}

func (s *Store) SetCurrentDocument(page *domain.OnlineDocumentPage) {
	s.Update(func(st *domain.SourceState) { st.CurrentDocument = page })
}

// Website crawl

func (s *Store) SetCrawlStep(step domain.CrawlStep) {
	s.Update(func(st *domain.SourceState) { st.CrawlStep = step })
}

func (s *Store) SetCrawlResult(res *domain.CrawlResult) {
	s.Update(func(st *domain.SourceState) { st.CrawlResult = res })
}

func (s *Store) SetCurrentWebsite(page *domain.WebsitePage) {
	s.Update(func(st *domain.SourceState) { st.CurrentWebsite = page })
}

func (s *Store) SetWebsitePages(pages []domain.WebsitePage) {
	s.Update(func(st *domain.SourceState) { st.WebsitePages = append([]domain.WebsitePage(nil), pages...) })
}

func (s *Store) SetPreviewIndex(i int) {
	s.Update(func(st *domain.SourceState) { st.PreviewIndex = i })
}

// Online drive

func (s *Store) SetOnlineDriveFiles(files []domain.OnlineDriveFile) {
	s.Update(func(st *domain.SourceState) { st.OnlineDriveFiles = append([]domain.OnlineDriveFile(nil), files...) })
}

func (s *Store) SetBucket(bucket string) {
	s.Update(func(st *domain.SourceState) { st.Bucket = bucket })
}

func (s *Store) SetPrefix(prefix []string) {
	s.Update(func(st *domain.SourceState) { st.Prefix = append([]string(nil), prefix...) })
}

func (s *Store) SetKeywords(k string) {
	s.Update(func(st *domain.SourceState) { st.Keywords = k })
}

func (s *Store) SetSelectedFileIDs(ids []string) {
	s.Update(func(st *domain.SourceState) { st.SelectedFileIDs = append([]string(nil), ids...) })
}
