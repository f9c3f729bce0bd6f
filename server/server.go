package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/Daskott/kinfolk/server/auth/key"
	"github.com/Daskott/kinfolk/server/cron"
	"github.com/Daskott/kinfolk/server/family"
	"github.com/Daskott/kinfolk/server/gstorage"
	"github.com/Daskott/kinfolk/server/logger"
	"github.com/Daskott/kinfolk/server/models"
	"github.com/Daskott/kinfolk/server/twilio"
	"github.com/Daskott/kinfolk/shared"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
)

const (
	API_PREFIX            = "/api"
	UPLOADS_DIR_NAME      = "uploads"
	DEFAULT_TOKEN_TTL_HRS = 720
)

var (
	logg     = logger.NewLogger()
	validate = validator.New()

	authKeyPair   *key.KeyPair
	familyService *family.Service
	personStore   familyStore
	notifier      Notifier
	storage       *gstorage.GStorage
	configValues  shared.ServerConfig
	uploadsDir    string
	tokenTTL      = DEFAULT_TOKEN_TTL_HRS * time.Hour
)

// familyStore is a PersonStore that can also list the families it holds.
type familyStore interface {
	family.PersonStore
	FamilyIDs(ctx context.Context) ([]string, error)
}

// Notifier delivers a text message to a phone number.
type Notifier interface {
	SendMessage(to, msg string) error
}

func Start(config shared.ServerConfig, devMode bool) {
	logg = logger.NewServerLogger(devMode)

	configDir := configDirectory(devMode)
	dataDir := config.Kinfolk.DataDir
	if dataDir == "" {
		dataDir = configDir
	}

	err := initialize(config, dataDir)
	fatalOnError(err)

	scheduler := cron.NewCronScheduler(config.Kinfolk.Cron.TimeZone)
	err = registerJobs(scheduler, config, dataDir)
	fatalOnError(err)
	scheduler.StartAsync()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%v", config.Kinfolk.Listener.Port),
		Handler:      newRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go serve(server)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	cleanup(scheduler, server, config, dataDir)
}

// initialize opens storage and sets up every dependency the handlers use.
func initialize(config shared.ServerConfig, dataDir string) error {
	var err error
	configValues = config

	err = RegisterValidators(validate)
	if err != nil {
		return err
	}

	if isEnabled(config.Google.Storage.EnableSqliteBackupAndSync) || isEnabled(config.Google.Storage.EnablePhotoUploads) {
		storage, err = gstorage.NewGStorage(config.Google.ApplicationCredentials)
		if err != nil {
			return err
		}
	}

	if isEnabled(config.Google.Storage.EnableSqliteBackupAndSync) {
		err = restoreSqliteDb(config, dataDir)
		if err != nil {
			return err
		}
	}

	err = models.AutoMigrate(config.Sqlite.PassPhrase, dataDir)
	if err != nil {
		return err
	}

	authKeyPair, err = key.NewKeyPairFromRSAPrivateKeyPem(config.Kinfolk.PrivateKeyPem)
	if err != nil {
		return err
	}

	if config.Kinfolk.TokenTTLHours > 0 {
		tokenTTL = time.Duration(config.Kinfolk.TokenTTLHours) * time.Hour
	}

	uploadsDir = filepath.Join(dataDir, UPLOADS_DIR_NAME)
	setFamilyService(newPersonStore(config.Kinfolk.Storage), config.Kinfolk.Tree.DefaultDepth)

	// twilio.NewClient is nil when SMS is off; keep the interface nil too
	if client := twilio.NewClient(config.Twilio); client != nil {
		notifier = client
	}

	return nil
}

func newPersonStore(storageType string) familyStore {
	if storageType == shared.MEMORY_STORAGE {
		logg.Warn("Persons are kept in memory and are lost on restart")
		return family.NewMemoryStore()
	}
	return models.NewPersonStore()
}

func setFamilyService(store familyStore, defaultDepth int) {
	personStore = store
	familyService = family.NewService(store, models.NewUserDirectory(), logg)
	if defaultDepth > 0 {
		familyService.DefaultDepth = defaultDepth
	}
}

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	router.HandleFunc("/jwks", jwks).Methods("GET")
	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))

	api := router.PathPrefix(API_PREFIX).Subrouter()
	api.Use(initialContextMiddleware)

	api.HandleFunc("/auth/signup", signUp).Methods("POST")
	api.HandleFunc("/auth/login", logIn).Methods("POST")
	api.HandleFunc("/auth/join-family", joinFamily).Methods("POST")

	protected := api.NewRoute().Subrouter()
	protected.Use(protectedRouteMiddleware)

	protected.HandleFunc("/dashboard", dashboard).Methods("GET")
	protected.HandleFunc("/auth/family-info", familyInfo).Methods("GET")
	protected.HandleFunc("/auth/change-password", changePassword).Methods("PUT")
	protected.HandleFunc("/auth/change-email", changeEmail).Methods("PUT")

	protected.Handle("/upload", editorRoute(uploadPhoto)).Methods("POST")

	persons := protected.PathPrefix("/persons").Subrouter()
	persons.Handle("", editorRoute(createPerson)).Methods("POST")
	persons.HandleFunc("", listPersons).Methods("GET")
	persons.Handle("/eligible-spouses", editorRoute(eligibleSpousesNewMember)).Methods("GET")
	persons.Handle("/edit-spouses", editorRoute(eligibleSpousesEdit)).Methods("GET")
	persons.HandleFunc("/occupations", occupations).Methods("GET")
	persons.Handle("/eligible-parents", editorRoute(eligibleParents)).Methods("GET")
	persons.HandleFunc("/family-tree", familyTree).Methods("GET")
	persons.Handle("/audit", editorRoute(auditFamily)).Methods("GET")
	persons.Handle("/{id}/merge-spouse-children", editorRoute(mergeSpouseChildren)).Methods("POST")
	persons.HandleFunc("/{id}", findPerson).Methods("GET")
	persons.Handle("/{id}", editorRoute(updatePerson)).Methods("PUT")
	persons.Handle("/{id}", editorRoute(deletePerson)).Methods("DELETE")

	users := protected.PathPrefix("/users").Subrouter()
	users.Use(adminRouteMiddleware)
	users.HandleFunc("/family-members", familyMembers).Methods("GET")
	users.HandleFunc("/invite", inviteFamilyMember).Methods("POST")
	users.HandleFunc("/{id:[0-9]+}/role", updateUserRole).Methods("PUT")
	users.HandleFunc("/{id:[0-9]+}", removeUserFromFamily).Methods("DELETE")

	return router
}

// isEnabled reads a config flag that may arrive as a bool from yaml or as a
// string from the environment.
func isEnabled(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		enabled, err := strconv.ParseBool(v)
		return err == nil && enabled
	}
	return false
}
