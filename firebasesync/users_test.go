package firebasesync

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"bitbucket.org/mmdatafocus/roadworks_backend/utils"
)

func TestSyncUsers_CreatesAccountOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putDoc(t, "users", "uid-1", map[string]any{"email": "a@b.mg", "displayName": "Rakoto Jean Paul"})
	f.putDoc(t, "users", "uid-2", map[string]any{"email": ""})
	f.putDoc(t, "users", "uid-3", map[string]any{"email": "pas-un-email"})

	res, err := f.svc.SyncUsers(ctx)
	if err != nil {
		t.Fatalf("SyncUsers: %v", err)
	}
	if res.Imported != 1 || len(res.Errors) != 1 || res.Errors[0].ID != "uid-3" {
		t.Fatalf("result = %+v", res)
	}

	var u models.User
	if err := f.db.Where("email = ?", "a@b.mg").Take(&u).Error; err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.FirstName != "Rakoto" || u.LastName != "Jean Paul" || u.Role != "USER" {
		t.Fatalf("user = %+v", u)
	}
	if u.FirebaseUid == nil || *u.FirebaseUid != "uid-1" {
		t.Fatalf("firebase_uid = %v", u.FirebaseUid)
	}
	if err := utils.ComparePassword(u.Password, utils.PlaceholderPassword("test-secret", "uid-1")); err != nil {
		t.Fatalf("placeholder password mismatch: %v", err)
	}

	again, err := f.svc.SyncUsers(ctx)
	if err != nil {
		t.Fatalf("second SyncUsers: %v", err)
	}
	if again.Imported != 0 || again.Exported != 0 {
		t.Fatalf("second run = %+v", again)
	}
	var n int64
	f.db.Model(&models.User{}).Where("LOWER(email) = ?", "a@b.mg").Count(&n)
	if n != 1 {
		t.Fatalf("accounts for a@b.mg = %d, want 1", n)
	}
}

func TestSyncUsers_LinksExistingAccountCaseInsensitively(t *testing.T) {
	f := newFixture(t)
	existing := models.User{Email: "Chef.Travaux@Mairie.mg", Password: "x", FirstName: "Chef", Role: models.UserRoleManager}
	if err := f.db.Create(&existing).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.putDoc(t, "users", "uid-chef", map[string]any{"email": "chef.travaux@mairie.mg", "displayName": "Chef"})

	res, err := f.svc.SyncUsers(context.Background())
	if err != nil {
		t.Fatalf("SyncUsers: %v", err)
	}
	if res.Imported != 0 || res.Linked != 1 || res.Exported != 0 {
		t.Fatalf("result = %+v", res)
	}
	var u models.User
	f.db.Take(&u, existing.ID)
	if u.FirebaseUid == nil || *u.FirebaseUid != "uid-chef" {
		t.Fatalf("account not linked: %+v", u)
	}
	if n := f.countRows(t, &models.User{}); n != 1 {
		t.Fatalf("users = %d, want 1", n)
	}
}

func TestSyncUsers_MirrorsConsoleAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	console := models.User{Email: "agent@mairie.mg", Password: "x", FirstName: "Hery", LastName: "Rabe", Role: models.UserRoleUser}
	nameless := models.User{Email: "anonyme@mairie.mg", Password: "x", Role: models.UserRoleUser}
	for _, u := range []*models.User{&console, &nameless} {
		if err := f.db.Create(u).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	res, err := f.svc.SyncUsers(ctx)
	if err != nil {
		t.Fatalf("SyncUsers: %v", err)
	}
	if res.Exported != 2 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}

	var u models.User
	f.db.Take(&u, console.ID)
	if u.FirebaseUid == nil {
		t.Fatalf("mirrored account not stamped")
	}
	doc, err := f.docs.Get(ctx, "users", *u.FirebaseUid)
	if err != nil {
		t.Fatalf("mirror doc: %v", err)
	}
	if doc.Data["displayName"] != "Hery Rabe" || doc.Data["referenceOnly"] != true || doc.Data["sqlId"] != console.ID {
		t.Fatalf("mirror doc = %+v", doc.Data)
	}

	f.db.Take(&u, nameless.ID)
	doc, _ = f.docs.Get(ctx, "users", *u.FirebaseUid)
	if doc.Data["displayName"] != "anonyme@mairie.mg" {
		t.Fatalf("displayName should fall back to the email, got %v", doc.Data["displayName"])
	}

	again, err := f.svc.SyncUsers(ctx)
	if err != nil {
		t.Fatalf("second SyncUsers: %v", err)
	}
	if again.Exported != 0 || again.Imported != 0 || again.Linked != 0 {
		t.Fatalf("second run = %+v", again)
	}
	if n := f.docs.Count("users"); n != 2 {
		t.Fatalf("user documents = %d, want 2", n)
	}
}

func TestSyncUsers_MirrorsAccountWithEmptyMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := models.User{Email: "vide@mairie.mg", Password: "x", Role: models.UserRoleUser, FirebaseUid: utils.Ptr("")}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := f.svc.SyncUsers(ctx)
	if err != nil {
		t.Fatalf("SyncUsers: %v", err)
	}
	if res.Exported != 1 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}
	again, err := f.svc.SyncUsers(ctx)
	if err != nil {
		t.Fatalf("second SyncUsers: %v", err)
	}
	if again.Exported != 0 || f.docs.Count("users") != 1 {
		t.Fatalf("second run = %+v, documents = %d", again, f.docs.Count("users"))
	}
}
