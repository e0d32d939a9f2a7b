package suds

// Functions regarding user handling.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/ropenttd/suds/utils"
)

// ensureOwnerExists makes sure that at least one owner exists in the database.
func (bot *Bot) ensureOwnerExists() {
	result, err := bot.Db.Query(`SELECT EXISTS(SELECT 1 FROM users WHERE owner=1 LIMIT 1);`)
	if err != nil {
		bot.Log.Fatalf("Can't check if owner exists: %s", err)
	}
	defer result.Close()

	if result.Next() {
		var ownerExists bool
		if err = result.Scan(&ownerExists); err != nil {
			bot.Log.Fatalf("Can't check if owner exists: %s", err)
		}
		if ownerExists {
			return
		}
	}

	// Bootstrap the owner account from the config.
	nick := bot.fullConfig.GetDefault("bot.owner", "").(string)
	password := bot.fullConfig.GetDefault("bot.owner_password", "").(string)
	if nick == "" || password == "" {
		bot.Log.Warningf("No owner account exists and none is configured. Privileged commands will be limited.")
		return
	}
	if err := bot.addUser(utils.CleanString(nick, false), password, true, true); err != nil {
		bot.Log.Fatalf("Can't create owner account: %s", err)
	}
	bot.Log.Infof("Created owner account for %s.", nick)
}

// addUser adds new user to bot's database.
func (bot *Bot) addUser(nick, password string, owner, admin bool) error {
	if password == "" {
		return errors.New("password can't be empty")
	}
	// Insert user into the db.
	if _, err := bot.Db.Exec(`INSERT INTO users(nick, password, owner, admin) VALUES(?, ?, ?, ?)`,
		nick, utils.HashPassword(password), owner, admin); err != nil {
		// Get exact error.
		var driverErr sqlite3.Error
		if errors.As(err, &driverErr) && driverErr.Code == sqlite3.ErrConstraint {
			return errors.New("user already exists")
		}
		return errors.New("error while adding new user")
	}
	return nil
}

// getUserData fetches user information from database.
func (bot *Bot) getUserData(nick string) (
	dbNick, password string, altNicks map[string]bool, owner, admin bool, err error) {

	altNicks = map[string]bool{}
	result, err := bot.Db.Query(`
		SELECT nick, password, IFNULL(alt_nicks, ""), owner, admin
		FROM users WHERE nick=? LIMIT 1`, nick)
	if err != nil {
		return
	}
	defer result.Close()

	// Get user data.
	if result.Next() {
		var altNicksStr string
		if err = result.Scan(&dbNick, &password, &altNicksStr, &owner, &admin); err != nil {
			return
		}
		for _, altNick := range strings.Split(altNicksStr, "|") {
			altNicks[altNick] = true
		}
	}

	// Check if the nick is indeed what we want.
	if dbNick != nick {
		err = errors.New("user not in the database")
		return
	}

	return
}

// authenticateUser authenticates the user as an owner, admin or regular user.
// Authentication is done on the basis of userId, which is assumed to be globally unique.
func (bot *Bot) authenticateUser(nick, userId, password string) error {
	_, dbPassword, _, owner, admin, err := bot.getUserData(nick)
	if err != nil {
		return fmt.Errorf("error when getting user data for %s: %w", nick, err)
	}
	// Check the password
	if utils.HashPassword(password) != dbPassword {
		return errors.New("invalid password for user")
	}
	// Check if user has any privileges
	if owner {
		bot.Log.Infof("Authenticating %s as an owner.", nick)
		bot.authenticatedOwners[userId] = nick
	}
	if admin {
		bot.Log.Infof("Authenticating %s as an admin.", nick)
		bot.authenticatedAdmins[userId] = nick
	}
	if !admin && !owner {
		bot.Log.Infof("Authenticating %s with no special privileges.", nick)
		bot.authenticatedUsers[userId] = nick
	}
	return nil
}

// GetAuthenticatedNick will get authenticated user's nick by his full name.
func (bot *Bot) GetAuthenticatedNick(userId string) string {
	if bot.authenticatedOwners[userId] != "" {
		return bot.authenticatedOwners[userId]
	}
	if bot.authenticatedAdmins[userId] != "" {
		return bot.authenticatedAdmins[userId]
	}
	if bot.authenticatedUsers[userId] != "" {
		return bot.authenticatedUsers[userId]
	}
	return ""
}

// UserIsAuthenticated checks if the user is authenticated with the bot.
func (bot *Bot) UserIsAuthenticated(userId string) bool {
	return bot.authenticatedOwners[userId] != "" || bot.authenticatedAdmins[userId] != "" ||
		bot.authenticatedUsers[userId] != ""
}

// UserIsOwner checks if the user is an authenticated owner.
func (bot *Bot) UserIsOwner(userId string) bool {
	return bot.authenticatedOwners[userId] != ""
}

// UserIsAdmin checks if the user is an authenticated admin.
func (bot *Bot) UserIsAdmin(userId string) bool {
	return bot.authenticatedAdmins[userId] != ""
}

// UserIsOwnerOrAdmin will check whether user has privileges.
func (bot *Bot) UserIsOwnerOrAdmin(userId string) bool {
	return bot.UserIsOwner(userId) || bot.UserIsAdmin(userId)
}
