package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/normalize"
	"github.com/dalemusser/flockhub/internal/app/system/paging"
	"github.com/dalemusser/flockhub/internal/app/system/search"
	"github.com/dalemusser/flockhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for stored password hashes.
const BcryptCost = 12

type Store struct {
	c    *mongo.Collection
	cost int
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users"), cost: BcryptCost}
}

// WithCost returns a copy of s hashing with cost. Tests use bcrypt.MinCost.
func (s *Store) WithCost(cost int) *Store {
	cp := *s
	cp.cost = cost
	return &cp
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	ErrNotFound       = errors.New("user not found")
	// ErrInvalidCredentials covers an unknown email, a wrong password and
	// an account without a password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnknownEmail       = fmt.Errorf("%w: unknown email", ErrInvalidCredentials)
	ErrWrongPassword      = fmt.Errorf("%w: wrong password", ErrInvalidCredentials)
	ErrBadRole            = errors.New("unknown role")
	ErrBadStatus          = errors.New(`status must be "active" or "disabled"`)
	ErrChurchNeeded       = errors.New("only superadmins may exist without a church")
	ErrDetailsMismatch    = errors.New("role details do not match role")
	ErrBadEmail           = errors.New("invalid email address")
)

// Create inserts a new user after normalizing and validating fields.
// Role and the role detail block must agree (see models.User.SetDetails).
// A non-empty password is hashed with bcrypt and sets the auth method to
// password.
func (s *Store) Create(ctx context.Context, u models.User, password string) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = normalize.CI(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.Role = normalize.Role(u.Role)
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	if u.Role == models.RoleSuperAdmin {
		u.ChurchID, u.BranchID = nil, nil
	}
	if err := validate(u); err != nil {
		return models.User{}, err
	}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return models.User{}, err
		}
		u.PasswordHash = string(hash)
		u.AuthMethod = models.AuthPassword
	}
	if u.AuthMethod == "" {
		u.AuthMethod = models.AuthPassword
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

func validate(u models.User) error {
	if !inputval.IsValidEmail(u.Email) {
		return ErrBadEmail
	}
	if !inputval.IsValidUserRole(u.Role) {
		return ErrBadRole
	}
	if u.Status != models.StatusActive && u.Status != models.StatusDisabled {
		return ErrBadStatus
	}
	if u.Role == models.RoleSuperAdmin {
		if u.Admin != nil || u.Pastor != nil || u.Leader != nil || u.Member != nil {
			return ErrDetailsMismatch
		}
		return nil
	}
	if u.ChurchID == nil {
		return ErrChurchNeeded
	}
	if u.Details() == nil {
		return ErrDetailsMismatch
	}
	return nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// Get loads a user of churchID.
func (s *Store) Get(ctx context.Context, churchID, id primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id, "church_id": churchID})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

// Authenticate checks email and password. Failures wrap
// ErrInvalidCredentials; ErrWrongPassword also returns the user so the
// attempt can be audited. Disabled accounts get auth.ErrUserInactive after
// the password matched.
func (s *Store) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	u, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, ErrUnknownEmail
	}
	if err != nil {
		return models.User{}, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return u, ErrWrongPassword
	}
	if u.Status != models.StatusActive {
		return u, auth.ErrUserInactive
	}
	return u, nil
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": string(hash),
		"auth_method":   models.AuthPassword,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Update holds the editable profile fields; nil fields are unchanged.
type Update struct {
	FullName *string
	Email    *string
	Phone    *string
	BranchID *primitive.ObjectID
	Status   *string
}

func (s *Store) Update(ctx context.Context, churchID, id primitive.ObjectID, u Update) (models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.FullName != nil {
		name := normalize.Name(*u.FullName)
		set["full_name"] = name
		set["full_name_ci"] = normalize.CI(name)
	}
	if u.Email != nil {
		email := normalize.Email(*u.Email)
		if !inputval.IsValidEmail(email) {
			return models.User{}, ErrBadEmail
		}
		set["email"] = email
	}
	if u.Phone != nil {
		set["phone"] = *u.Phone
	}
	if u.BranchID != nil {
		set["branch_id"] = *u.BranchID
	}
	if u.Status != nil {
		st := normalize.Status(*u.Status)
		if st != models.StatusActive && st != models.StatusDisabled {
			return models.User{}, ErrBadStatus
		}
		set["status"] = st
	}
	return s.apply(ctx, bson.M{"_id": id, "church_id": churchID}, bson.M{"$set": set})
}

// SetRole switches a church user to the role of d, replacing the detail
// block. Superadmin is not reachable this way.
func (s *Store) SetRole(ctx context.Context, churchID, id primitive.ObjectID, d models.RoleDetails) (models.User, error) {
	if d == nil {
		return models.User{}, ErrBadRole
	}
	set := bson.M{"role": d.Role(), "updated_at": time.Now().UTC()}
	unset := bson.M{}
	for _, block := range []string{models.RoleAdmin, models.RolePastor, models.RoleLeader, models.RoleMember} {
		if block == d.Role() {
			set[block] = d
		} else {
			unset[block] = ""
		}
	}
	return s.apply(ctx, bson.M{"_id": id, "church_id": churchID}, bson.M{"$set": set, "$unset": unset})
}

func (s *Store) apply(ctx context.Context, filter, update bson.M) (models.User, error) {
	var out models.User
	err := s.c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.User{}, ErrNotFound
	case wafflemongo.IsDup(err):
		return models.User{}, ErrDuplicateEmail
	}
	return out, err
}

// TouchLogin records a successful sign-in.
func (s *Store) TouchLogin(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_login_at": now}})
	return err
}

// Delete removes a church user. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, churchID, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByChurch removes every user of a church.
func (s *Store) DeleteByChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListFilter narrows List. A Search containing "@" with a fixed Status
// pivots to an email prefix search sorted by email.
type ListFilter struct {
	Role     string
	Status   string
	BranchID *primitive.ObjectID
	Search   string
}

// List returns one keyset page of a church's users. A nil churchID lists
// superadmins.
func (s *Store) List(ctx context.Context, churchID *primitive.ObjectID, f ListFilter, p paging.Params) ([]models.User, paging.Result, error) {
	filter := bson.M{}
	if churchID != nil {
		filter["church_id"] = *churchID
	} else {
		filter["role"] = models.RoleSuperAdmin
	}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.BranchID != nil {
		filter["branch_id"] = *f.BranchID
	}

	sortField := "full_name_ci"
	if search.EmailPivotOK(f.Search, f.Status) {
		sortField = "email"
		search.Merge(filter, search.Prefix("email", f.Search))
	} else {
		search.Merge(filter, search.Prefix("full_name_ci", f.Search))
	}
	return paging.FindPage[models.User](ctx, s.c, filter, sortField, p)
}

// GetMany loads the given users, keyed by id. Unknown ids are skipped.
func (s *Store) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"password_hash": 0}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, cur.Err()
}

// CountByChurch returns the number of users of a church, optionally of one role.
func (s *Store) CountByChurch(ctx context.Context, churchID primitive.ObjectID, role string) (int64, error) {
	filter := bson.M{"church_id": churchID}
	if role != "" {
		filter["role"] = role
	}
	return s.c.CountDocuments(ctx, filter)
}

// EnsureSuperAdmin creates an active superadmin for email when no user
// with that email exists. An existing user is promoted to superadmin and
// re-enabled. created reports whether a new document was inserted.
func (s *Store) EnsureSuperAdmin(ctx context.Context, email, fullName, password string) (created bool, err error) {
	existing, err := s.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == models.RoleSuperAdmin && existing.Status == models.StatusActive {
			return false, nil
		}
		_, err = s.c.UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{
			"$set":   bson.M{"role": models.RoleSuperAdmin, "status": models.StatusActive, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"church_id": "", "branch_id": "", "admin": "", "pastor": "", "leader": "", "member": ""},
		})
		return false, err
	case !errors.Is(err, ErrNotFound):
		return false, err
	}

	if fullName == "" {
		fullName = "Administrator"
	}
	u := models.User{FullName: fullName, Email: email}
	u.SetDetails(nil)
	if password == "" {
		u.AuthMethod = models.AuthGoogle
	}
	if _, err := s.Create(ctx, u, password); err != nil {
		return false, err
	}
	return true, nil
}

// FetchSessionUser implements auth.UserFetcher. Disabled and deleted users
// yield auth.ErrUserInactive.
func (s *Store) FetchSessionUser(ctx context.Context, id primitive.ObjectID) (*auth.SessionUser, error) {
	var u models.User
	proj := options.FindOne().SetProjection(bson.M{
		"_id": 1, "full_name": 1, "email": 1, "role": 1, "status": 1, "church_id": 1, "branch_id": 1,
	})
	err := s.c.FindOne(ctx, bson.M{"_id": id}, proj).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, auth.ErrUserInactive
	}
	if err != nil {
		return nil, err
	}
	if normalize.Status(u.Status) != models.StatusActive {
		return nil, auth.ErrUserInactive
	}
	return auth.FromUser(&u), nil
}
