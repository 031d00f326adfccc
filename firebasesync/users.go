package firebasesync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/roadworks_backend/docstore"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"bitbucket.org/mmdatafocus/roadworks_backend/utils"
	"gorm.io/gorm"
)

var errUserLinkedElsewhere = errors.New("user was linked by another writer")

// reconcileUsers creates or links a MySQL account for every Firestore identity, then
// mirrors the accounts Firestore does not know about as reference-only documents.
func (s *Service) reconcileUsers(ctx context.Context, rec *runRecorder) (*UserSyncResult, error) {
	result := newUserSyncResult()

	docs, err := s.docs.All(ctx, s.settings.UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.settings.UsersCollection, err)
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		detail, err := s.importUser(ctx, doc)
		if err != nil {
			rec.recordError(ctx, models.SyncStageUsers, "user_document", doc.ID, err)
			result.Errors = append(result.Errors, ItemError{ID: doc.ID, Error: err.Error()})
			result.Details = append(result.Details, ItemDetail{ID: doc.ID, Action: ActionError})
			continue
		}
		switch detail.Action {
		case ActionCreated:
			result.Imported++
		case ActionLinked:
			result.Linked++
		}
		result.Details = append(result.Details, detail)
		s.debugItem(models.SyncStageUsers, detail)
	}

	var unlinked []models.User
	if err := s.db.WithContext(ctx).Where("firebase_uid IS NULL OR firebase_uid = ''").Order("id").Find(&unlinked).Error; err != nil {
		return nil, fmt.Errorf("%w: load unlinked users: %v", ErrRelationalUnavailable, err)
	}
	for _, user := range unlinked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := strconv.Itoa(user.ID)
		detail, err := s.mirrorUser(ctx, user)
		if err != nil {
			rec.recordError(ctx, models.SyncStageUsers, "user", id, err)
			result.Errors = append(result.Errors, ItemError{ID: id, Error: err.Error()})
			result.Details = append(result.Details, ItemDetail{ID: id, Action: ActionError, UserId: user.ID})
			continue
		}
		result.Exported++
		result.Details = append(result.Details, detail)
		s.debugItem(models.SyncStageUsers, detail)
	}

	rec.addStats(result.Imported+result.Linked+result.Exported, map[string]int{
		"users_imported": result.Imported,
		"users_linked":   result.Linked,
		"users_exported": result.Exported,
		"users_errors":   len(result.Errors),
	})
	return result, nil
}

func (s *Service) importUser(ctx context.Context, doc docstore.Document) (ItemDetail, error) {
	detail := ItemDetail{ID: doc.ID, FirebaseId: doc.ID}

	email, err := stringField(doc.Data, "email")
	if err != nil {
		return detail, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		detail.Action = ActionSkipped
		return detail, nil
	}
	if !utils.IsValidEmail(email) {
		return detail, fmt.Errorf("invalid email %q", email)
	}

	db := s.db.WithContext(ctx)

	var byUid models.User
	err = db.Where("firebase_uid = ?", doc.ID).Take(&byUid).Error
	if err == nil {
		detail.Action = ActionSkipped
		detail.UserId = byUid.ID
		return detail, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return detail, err
	}

	existing, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return detail, err
	}
	if existing != nil {
		detail.UserId = existing.ID
		if existing.FirebaseUid != nil && *existing.FirebaseUid != "" {
			detail.Action = ActionSkipped
			return detail, nil
		}
		if err := s.stampFirebaseUid(ctx, existing.ID, doc.ID); err != nil {
			return detail, err
		}
		detail.Action = ActionLinked
		return detail, nil
	}

	firstName, lastName, err := userNames(doc.Data)
	if err != nil {
		return detail, err
	}
	hashed, err := utils.HashPassword(utils.PlaceholderPassword(s.settings.PlaceholderSecret, doc.ID))
	if err != nil {
		return detail, err
	}
	uid := doc.ID
	user := models.User{
		Email:       email,
		Password:    string(hashed),
		FirstName:   firstName,
		LastName:    lastName,
		Role:        s.settings.DefaultRole,
		FirebaseUid: &uid,
	}
	if err := db.Create(&user).Error; err != nil {
		return detail, fmt.Errorf("create user: %w", err)
	}
	detail.Action = ActionCreated
	detail.UserId = user.ID
	return detail, nil
}

// findUserByEmail tries the exact address first, then a case-insensitive match.
func (s *Service) findUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	err := db.Where("email = ?", email).Take(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = db.Where("LOWER(email) = ?", strings.ToLower(email)).Order("id").Take(&user).Error
	if err == nil {
		return &user, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

func (s *Service) mirrorUser(ctx context.Context, user models.User) (ItemDetail, error) {
	collection := s.settings.UsersCollection
	docId := s.docs.NewID(collection)
	detail := ItemDetail{ID: strconv.Itoa(user.ID), Action: ActionMirrored, UserId: user.ID, FirebaseId: docId}

	data := map[string]any{
		"email":         user.Email,
		"displayName":   user.DisplayName(),
		"firstName":     user.FirstName,
		"lastName":      user.LastName,
		"role":          user.Role,
		"sqlId":         user.ID,
		"referenceOnly": true,
		"createdAt":     s.now().UTC(),
	}
	if err := s.docs.Set(ctx, collection, docId, data); err != nil {
		return detail, fmt.Errorf("write user document: %w", err)
	}
	if err := s.stampFirebaseUid(ctx, user.ID, docId); err != nil {
		return detail, err
	}
	return detail, nil
}

func (s *Service) stampFirebaseUid(ctx context.Context, userId int, uid string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (firebase_uid IS NULL OR firebase_uid = '')", userId).
		UpdateColumn("firebase_uid", uid)
	if res.Error != nil {
		return fmt.Errorf("set firebase_uid: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errUserLinkedElsewhere
	}
	return nil
}

// userNames prefers explicit firstName/lastName and falls back to splitting displayName.
func userNames(data map[string]any) (string, string, error) {
	first, err := stringField(data, "firstName")
	if err != nil {
		return "", "", err
	}
	last, err := stringField(data, "lastName")
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(first) != "" || strings.TrimSpace(last) != "" {
		return strings.TrimSpace(first), strings.TrimSpace(last), nil
	}
	display, err := stringField(data, "displayName")
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(display) == "" {
		if display, err = stringField(data, "name"); err != nil {
			return "", "", err
		}
	}
	first, last = models.SplitDisplayName(display)
	return first, last, nil
}
