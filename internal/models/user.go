package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UserRole string
type Role = UserRole // Alias for compatibility

const (
	RoleCEO             UserRole = "CEO"
	RoleDEO             UserRole = "DEO"
	RoleDDEO            UserRole = "DDEO"
	RoleAEO             UserRole = "AEO"
	RoleHeadTeacher     UserRole = "HEAD_TEACHER"
	RoleTeacher         UserRole = "TEACHER"
	RoleCoach           UserRole = "COACH"
	RoleTrainingManager UserRole = "TRAINING_MANAGER"
)

// AllRoles lists every role the service recognizes.
var AllRoles = []UserRole{
	RoleCEO, RoleDEO, RoleDDEO, RoleAEO,
	RoleHeadTeacher, RoleTeacher, RoleCoach, RoleTrainingManager,
}

type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	FullName string   `json:"full_name" gorm:"not null;size:100" validate:"required,min=1,max=100"`
	Phone    string   `json:"phone" gorm:"uniqueIndex;not null;size:20" validate:"required"`
	Role     UserRole `json:"role" gorm:"not null;index;size:32" validate:"required"`

	// Organizational units. Which of these are set depends on the role:
	// school staff carry a school, AEOs a cluster, district officials a district.
	SchoolID   *string `json:"school_id" gorm:"index;size:255"`
	SchoolName *string `json:"school_name" gorm:"size:200"`
	ClusterID  *string `json:"cluster_id" gorm:"index;size:255"`
	DistrictID *string `json:"district_id" gorm:"index;size:255"`

	// AEO-style multi-school oversight: explicit school names outside the
	// AEO's own cluster.
	AssignedSchools datatypes.JSONSlice[string] `json:"assigned_schools" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type District struct {
	ID   string `json:"id" gorm:"primaryKey;size:255"`
	Name string `json:"name" gorm:"not null;size:200;uniqueIndex"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (District) TableName() string {
	return "districts"
}

type Cluster struct {
	ID         string `json:"id" gorm:"primaryKey;size:255"`
	Name       string `json:"name" gorm:"not null;size:200"`
	DistrictID string `json:"district_id" gorm:"not null;index;size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Cluster) TableName() string {
	return "clusters"
}

type School struct {
	ID         string `json:"id" gorm:"primaryKey;size:255"`
	Name       string `json:"name" gorm:"not null;size:200"`
	EMISCode   string `json:"emis_code" gorm:"size:50;index"`
	ClusterID  string `json:"cluster_id" gorm:"index;size:255"`
	DistrictID string `json:"district_id" gorm:"index;size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (School) TableName() string {
	return "schools"
}
