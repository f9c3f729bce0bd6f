package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Daskott/kinfolk/server/auth"
	"github.com/Daskott/kinfolk/server/family"
	"github.com/Daskott/kinfolk/server/models"
	"github.com/Daskott/kinfolk/shared"
	"github.com/Daskott/kinfolk/utils"
	"github.com/go-co-op/gocron"
	"github.com/go-playground/validator"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/mux"
)

const (
	MIN_PASSWORD_LENGTH = 6
	MAX_BODY_BYTES      = 5 << 20
	DATE_LAYOUT         = "2006-01-02"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type RequestContextKey string

// DecodedJWT is what the auth header of a request resolved to.
type DecodedJWT struct {
	Claims   *auth.KinfolkTokenClaims
	User     *models.User
	ErrorMsg string
}

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func writeJSON(rw http.ResponseWriter, v interface{}, statusCode int) {
	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(v)
}

func writeData(rw http.ResponseWriter, data interface{}, statusCode int) {
	writeResponse(rw, ResponsePayload{Success: true, Data: data}, statusCode)
}

func writeError(rw http.ResponseWriter, statusCode int, format string, a ...interface{}) {
	writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf(format, a...)}}, statusCode)
}

// writeFamilyError replies with the status that matches the kind of err.
func writeFamilyError(rw http.ResponseWriter, err error) {
	writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, statusForError(err))
}

func statusForError(err error) int {
	var propagationErr *family.PropagationError

	switch {
	case errors.As(err, &propagationErr):
		return http.StatusInternalServerError
	case errors.Is(err, family.ErrInvalidInput), errors.Is(err, family.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, family.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads the json body of r into v and validates it.
func decodeBody(rw http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(rw, r.Body, MAX_BODY_BYTES))

	err := decoder.Decode(v)
	if err != nil {
		writeError(rw, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}

	errs := validate.Struct(v)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return false
	}

	return true
}

func RegisterValidators(validate *validator.Validate) error {
	err := validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		// if whitespace in password return false
		err := validate.Var(fl.Field().String(), "contains= ")
		if err == nil {
			return false
		}
		return len(fl.Field().String()) >= MIN_PASSWORD_LENGTH
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("bool", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind().String() == "bool"
	})
	if err != nil {
		return err
	}

	return validate.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := parseDate(fl.Field().String())
		return err == nil
	})
}

// parseDate accepts a calendar date or an RFC 3339 timestamp and returns it in UTC.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	date, err := time.Parse(DATE_LAYOUT, value)
	if err == nil {
		return date.UTC(), nil
	}

	date, err = time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return date.UTC(), nil
}

func queryInt(r *http.Request, name string, defaultValue int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return defaultValue, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%v must be a number", name)
	}

	return n, nil
}

// ---------------------------------------------------------------------------------//
// Middleware Helper functions
// --------------------------------------------------------------------------------//

func decodeAndVerifyAuthHeader(authHeaderValue string) DecodedJWT {
	if strings.TrimSpace(authHeaderValue) == "" {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}

	// the bearer prefix is optional
	token := strings.TrimSpace(strings.TrimPrefix(authHeaderValue, "Bearer "))

	tokenClaims, err := auth.DecodeJWT(token, authKeyPair)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	// validate that the user account still exists
	user, err := models.FindUserBy("id", tokenClaims.Subject)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims, User: user}
}

func decodedJWT(r *http.Request) DecodedJWT {
	decoded, _ := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)
	return decoded
}

// requestUser is the account making r. Only call it behind protectedRouteMiddleware.
func requestUser(r *http.Request) *models.User {
	return decodedJWT(r).User
}

// requestActor builds the caller the family service acts for from the
// account on record, so role or family changes apply without a new token.
func requestActor(r *http.Request) family.Actor {
	user := requestUser(r)
	return family.Actor{
		UserID:   strconv.FormatUint(uint64(user.ID), 10),
		FamilyID: user.FamilyID,
		Email:    user.Email,
		Role:     user.RoleName(),
	}
}

func issueToken(user *models.User) (string, error) {
	now := time.Now()
	return auth.EncodeJWT(auth.KinfolkTokenClaims{
		Name:     user.Name,
		Email:    user.Email,
		FamilyID: user.FamilyID,
		Role:     user.RoleName(),
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(tokenTTL).Unix(),
		},
	}, authKeyPair)
}

func routeVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func serve(server *http.Server) {
	logg.Infof("Kinfolk server is listening on %v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(scheduler *gocron.Scheduler, server *http.Server, config shared.ServerConfig, dataDir string) {
	scheduler.Stop()

	if isEnabled(config.Google.Storage.EnableSqliteBackupAndSync) {
		if err := backupSqliteDb(config, dataDir); err != nil {
			logg.Error(err)
		}
	}

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Kinfolk server shutdown failed:%+s", err)
	}

	logg.Infof("Kinfolk server stopped properly")
}

// configDirectory retrieves the directory to store kinfolk data
// Or logs an error message and then calls os.Exit if it's unable to.
func configDirectory(devMode bool) string {
	// Use 'kinfolk' folder in home directory for prod
	configFolderName := "kinfolk"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
