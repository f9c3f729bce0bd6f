package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/Daskott/kinfolk/colors"
	"github.com/Daskott/kinfolk/server/gstorage"
	"github.com/Daskott/kinfolk/server/models"
	"github.com/Daskott/kinfolk/shared"
	"github.com/Daskott/kinfolk/utils"
	"github.com/go-co-op/gocron"
)

const (
	AUDIT_JOB_TAG  = "consistencyAudit"
	BACKUP_JOB_TAG = "backupSqliteDb"
)

func registerJobs(scheduler *gocron.Scheduler, config shared.ServerConfig, dataDir string) error {
	if config.Kinfolk.Cron.AuditSchedule != "" {
		_, err := scheduler.Cron(config.Kinfolk.Cron.AuditSchedule).Tag(AUDIT_JOB_TAG).Do(func() {
			if _, err := consistencyAudit(context.Background()); err != nil {
				logg.Error(err)
			}
		})
		if err != nil {
			return fmt.Errorf("registerJobs %v: %v", AUDIT_JOB_TAG, err)
		}
	}

	if isEnabled(config.Google.Storage.EnableSqliteBackupAndSync) && config.Kinfolk.Storage != shared.MEMORY_STORAGE {
		_, err := scheduler.Cron(config.Google.Storage.SqliteBackupSchedule).Tag(BACKUP_JOB_TAG).Do(func() {
			if err := backupSqliteDb(config, dataDir); err != nil {
				logg.Error(err)
			}
		})
		if err != nil {
			return fmt.Errorf("registerJobs %v: %v", BACKUP_JOB_TAG, err)
		}
	}

	return nil
}

// consistencyAudit checks every family graph and logs the violations it
// finds. It returns the number of inconsistent families.
func consistencyAudit(ctx context.Context) (int, error) {
	familyIDs, err := personStore.FamilyIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("consistencyAudit: %v", err)
	}

	inconsistent := 0
	for _, familyID := range familyIDs {
		report, err := familyService.Audit(ctx, familyID)
		if err != nil {
			logg.Errorf("consistencyAudit %v: %v", familyID, err)
			continue
		}

		if report.Consistent() {
			continue
		}

		inconsistent++
		for _, violation := range report.Violations {
			logg.Warnw("family graph violation",
				"family_id", familyID,
				"kind", violation.Kind,
				"person_id", violation.PersonID,
				"related_id", violation.RelatedID)
		}
	}

	logg.Infof("consistencyAudit checked %v families, %v inconsistent", len(familyIDs), inconsistent)
	return inconsistent, nil
}

func backupSqliteDb(config shared.ServerConfig, dataDir string) error {
	dbFilePath, err := models.DbFilePath(dataDir)
	if err != nil {
		return err
	}

	if !utils.FileExist(dbFilePath) {
		return fmt.Errorf("backupSqliteDb: %v does not exist", dbFilePath)
	}

	return storage.UploadFile(config.Google.Storage.Bucket, config.Google.Storage.Prefix, dbFilePath)
}

// restoreSqliteDb pulls the last backup when there is no local db yet.
func restoreSqliteDb(config shared.ServerConfig, dataDir string) error {
	dbFilePath, err := models.DbFilePath(dataDir)
	if err != nil {
		return err
	}

	if utils.FileExist(dbFilePath) {
		return nil
	}

	object := gstorage.ObjectName(config.Google.Storage.Prefix, dbFilePath)
	err = storage.DownloadFile(config.Google.Storage.Bucket, object, dbFilePath)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		logg.Info(colors.Warning(fmt.Sprintf("no backup at %v, starting with an empty db", object)))
		return nil
	}

	return err
}
