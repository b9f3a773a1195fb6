package domain

// Repository — проект, который может быть pull-зеркалом.
//
// Scheduler только читает Repository: включение/выключение зеркалирования,
// архивация и удаление проекта управляются снаружи.
type Repository struct {
	// ID — идентификатор репозитория. Используется как tie-break в курсоре.
	ID int64 `json:"id"`

	// FullPath — путь проекта, например "group/project".
	FullPath string `json:"full_path"`

	// MirrorEnabled — включено ли pull-зеркалирование.
	MirrorEnabled bool `json:"mirror_enabled"`

	// Archived — проект архивирован, синхронизация не нужна.
	Archived bool `json:"archived"`

	// PendingDelete — проект удаляется.
	PendingDelete bool `json:"pending_delete"`
}

// CanMirror возвращает true, если репозиторий может синхронизироваться.
func (r *Repository) CanMirror() bool {
	return r.MirrorEnabled && !r.Archived && !r.PendingDelete
}
