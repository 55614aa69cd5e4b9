package model

import "time"

type Role string

const (
	RoleStudent   Role = "Estudiante"
	RoleProfessor Role = "Profesor"
	RoleLibrarian Role = "Bibliotecaria"
	RoleAdmin     Role = "Administrador"
)

type User struct {
	ID    int    `json:"id" db:"id"`
	Code  string `json:"code" db:"code"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Role  Role   `json:"role" db:"role"`
}

type CopyStatus string

const (
	CopyAvailable CopyStatus = "Disponible"
	CopyReserved  CopyStatus = "Reservado"
	CopyLoaned    CopyStatus = "Prestado"
)

type Copy struct {
	ID        int        `json:"id" db:"id"`
	BookID    int        `json:"bookId" db:"book_id"`
	Number    int        `json:"number" db:"number"`
	Barcode   string     `json:"barcode" db:"barcode"`
	Location  *string    `json:"location,omitempty" db:"location"`
	Status    CopyStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

const (
	JobCorrectFines  = "correct_fines"
	JobGenerateFines = "generate_fines"
	JobExpirePickups = "expire_pickups"
)

// BatchResult reports a background job. Jobs never fail as a whole;
// per-item failures end up in Errors.
type BatchResult struct {
	Job            string   `json:"job"`
	Scanned        int      `json:"scanned"`
	Affected       int      `json:"affected"`
	Skipped        int      `json:"skipped"`
	AlreadyRunning bool     `json:"alreadyRunning,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

type Message struct {
	Message string `json:"message"`
}
