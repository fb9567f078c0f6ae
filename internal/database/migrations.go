package database

const schema = `
CREATE TABLE IF NOT EXISTS photos (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL DEFAULT '',
    path TEXT NOT NULL DEFAULT '',
    size INTEGER NOT NULL DEFAULT 0,
    type TEXT NOT NULL DEFAULT '',
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    description TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS raw_exif (
    photo_id TEXT PRIMARY KEY REFERENCES photos(id) ON DELETE CASCADE,
    exif_data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS common_exif (
    photo_id TEXT PRIMARY KEY REFERENCES photos(id) ON DELETE CASCADE,
    date_time TEXT,
    camera_make TEXT,
    camera_model TEXT,
    lens_info TEXT,
    focal_length TEXT,
    focal_length_35mm INTEGER,
    aperture TEXT,
    shutter_speed TEXT,
    iso INTEGER,
    exposure_program TEXT,
    exposure_mode TEXT,
    metering_mode TEXT,
    white_balance TEXT,
    flash TEXT,
    software TEXT,
    rating INTEGER,
    copyright TEXT,
    artist TEXT
);

CREATE TABLE IF NOT EXISTS photo_details (
    photo_id TEXT NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
    version_type TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    size INTEGER NOT NULL DEFAULT 0,
    type TEXT NOT NULL DEFAULT '',
    path TEXT NOT NULL DEFAULT '',
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (photo_id, version_type)
);

CREATE TABLE IF NOT EXISTS keywords (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS photo_keywords (
    photo_id TEXT NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
    keyword_id INTEGER NOT NULL REFERENCES keywords(id),
    PRIMARY KEY (photo_id, keyword_id)
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS photo_groups (
    photo_id TEXT NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
    group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    added_at TEXT NOT NULL,
    PRIMARY KEY (photo_id, group_id)
);

CREATE TABLE IF NOT EXISTS trash (
    photo_id TEXT PRIMARY KEY,
    deleted_at TEXT NOT NULL,
    auto_delete_at TEXT NOT NULL,
    photo_data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_photos_created ON photos (created_at);
CREATE INDEX IF NOT EXISTS idx_photo_keywords_keyword ON photo_keywords (keyword_id);
CREATE INDEX IF NOT EXISTS idx_photo_groups_group ON photo_groups (group_id, added_at);
CREATE INDEX IF NOT EXISTS idx_trash_dates ON trash (deleted_at, auto_delete_at);
CREATE INDEX IF NOT EXISTS idx_trash_auto_delete ON trash (auto_delete_at);
`
