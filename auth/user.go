package auth

type DBUser interface {
	ID() int
	Name() string
	Superuser() bool
}

type UserDB interface {
	ChangePassword(u DBUser, old, new string) error
	Delete(u DBUser) error
	GetAllUsers(limit, offset int) ([]DBUser, error)
	GetUser(id int) (DBUser, error)
	InsertUser(name string) (DBUser, error)
	LoginUser(name, password string) (DBUser, error)
	SetPassword(u DBUser, password string) error
	SetSuperuser(u DBUser, super bool) error
	Writeable() bool
}

type User = DBUser
